package core

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/JonMunkholm/dipendenti/internal/logging"
)

func generateTestCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("CF,NOME,DN,SALARIO\n")
	for i := 0; i < rows; i++ {
		switch i % 4 {
		case 0:
			fmt.Fprintf(&buf, "RSSMRA80A01H%04d,Mario Rossi,1990-05-15,%d.50\n", i%10000, 1000+i)
		case 1:
			fmt.Fprintf(&buf, "SHORT%d,Anna,1990-05-15,1000\n", i)
		case 2:
			fmt.Fprintf(&buf, "RSSMRA80A01H%04d,Luca,2024-13-01,2000\n", i%10000)
		default:
			fmt.Fprintf(&buf, "RSSMRA80A01H%04d,Giulia Verdi,1985-07-20,abc\n", i%10000)
		}
	}
	return buf.Bytes()
}

func benchSession() *Session {
	return NewSession(SessionOptions{Logger: logging.Discard()})
}

func BenchmarkValidateRow(b *testing.B) {
	v := DefaultValidator()
	row := Row{ColCF: "ABCDEFGHIJKLMNOP", ColNome: "Mario Rossi", ColDN: "1990-05-15", ColSalario: "2500.50"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.ValidateRow(row)
	}
}

func BenchmarkLoadReader(b *testing.B) {
	data := generateTestCSV(10000)
	s := benchSession()
	ctx := context.Background()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.LoadReader(ctx, bytes.NewReader(data), "bench.csv", 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkClassify(b *testing.B) {
	s := benchSession()
	ctx := context.Background()
	raw, err := s.LoadReader(ctx, bytes.NewReader(generateTestCSV(10000)), "bench.csv", 1)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.Classify(ctx, raw); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnion(b *testing.B) {
	s := benchSession()
	ctx := context.Background()
	raw, _ := s.LoadReader(ctx, bytes.NewReader(generateTestCSV(5000)), "bench.csv", 1)
	ok, _, _ := s.Classify(ctx, raw)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Union(ok, ok); err != nil {
			b.Fatal(err)
		}
	}
}
