package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/google/go-cmp/cmp"
)

func TestLoadReader_Basic(t *testing.T) {
	s, _ := newTestSession(t)
	data := "CF,NOME,DN,SALARIO\n" +
		"ABCDEFGHIJKLMNOP,Mario Rossi,1990-05-15,2500.50\n" +
		"RSSMRA80A01H501U, Luca ,,\n" +
		"RSSMRA80A01H501V,\"Verdi, Giulia\",1985-07-20,1000\n"

	tbl := loadString(t, s, data, 1)

	if diff := cmp.Diff(LoadedColumns, tbl.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if tbl.Kind() != KindRaw || tbl.RunID() != 1 || tbl.Source() != "test.csv" {
		t.Errorf("got kind=%s run=%d source=%q", tbl.Kind(), tbl.RunID(), tbl.Source())
	}

	today := Today(testNow)
	want := []Row{
		{ColCF: "ABCDEFGHIJKLMNOP", ColNome: "Mario Rossi", ColDN: "1990-05-15", ColSalario: "2500.50", ColDINS: today},
		{ColCF: "RSSMRA80A01H501U", ColNome: " Luca ", ColDN: nil, ColSalario: nil, ColDINS: today},
		{ColCF: "RSSMRA80A01H501V", ColNome: "Verdi, Giulia", ColDN: "1985-07-20", ColSalario: "1000", ColDINS: today},
	}
	if diff := cmp.Diff(want, tbl.Rows()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadReader_HeaderOrderAndCase(t *testing.T) {
	s, _ := newTestSession(t)
	tbl := loadString(t, s, "salario, dn ,Nome,cf\n2500,1990-05-15,Mario,ABCDEFGHIJKLMNOP\n", 2)

	row := tbl.Row(0)
	if row[ColCF] != "ABCDEFGHIJKLMNOP" || row[ColNome] != "Mario" ||
		row[ColDN] != "1990-05-15" || row[ColSalario] != "2500" {
		t.Errorf("row = %v", row)
	}
	if diff := cmp.Diff(LoadedColumns, tbl.Columns()); diff != "" {
		t.Errorf("columns not canonical (-want +got):\n%s", diff)
	}
}

func TestLoadReader_SkipsBOM(t *testing.T) {
	s, _ := newTestSession(t)
	tbl := loadString(t, s, "\xEF\xBB\xBFCF,NOME,DN,SALARIO\nABCDEFGHIJKLMNOP,Mario,1990-05-15,1\n", 1)
	if tbl.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tbl.Count())
	}
}

func TestLoadReader_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantLine int
		wantMsg  string
		wantCode string
	}{
		{
			name:     "empty input",
			data:     "",
			wantLine: 1,
			wantMsg:  "missing header row",
			wantCode: "SCH002",
		},
		{
			name:     "unknown column",
			data:     "CF,NAME,DN,SALARIO\n",
			wantLine: 1,
			wantMsg:  "missing required columns: NOME",
			wantCode: "SCH001",
		},
		{
			name:     "header too wide",
			data:     "CF,NOME,DN,SALARIO,EXTRA\n",
			wantLine: 1,
			wantMsg:  "wrong number of fields",
			wantCode: "SCH001",
		},
		{
			name:     "short data row",
			data:     "CF,NOME,DN,SALARIO\nABCDEFGHIJKLMNOP,Mario,1990-05-15,1\nA,B,C\n",
			wantLine: 3,
			wantMsg:  "wrong number of fields",
			wantCode: "SCH001",
		},
		{
			name:     "bare quote",
			data:     "CF,NOME,DN,SALARIO\nABC,Ma\"rio,1990-05-15,1\n",
			wantLine: 2,
			wantMsg:  "bare \"",
			wantCode: "SCH001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, buf := newTestSession(t)
			_, err := s.LoadReader(context.Background(), strings.NewReader(tt.data), "bad.csv", 1)

			var schemaErr *SchemaMismatchError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("error = %v, want *SchemaMismatchError", err)
			}
			if schemaErr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", schemaErr.Line, tt.wantLine)
			}
			if schemaErr.Source != "bad.csv" {
				t.Errorf("Source = %q, want bad.csv", schemaErr.Source)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError code = %s, want %s", got, tt.wantCode)
			}
			if buf.Len() != 0 {
				t.Errorf("failed load wrote audit lines: %q", buf.String())
			}
		})
	}
}

func TestLoadReader_FieldCountCause(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.LoadReader(context.Background(), strings.NewReader("CF,NOME,DN,SALARIO\na,b\n"), "x.csv", 1)
	if !errors.Is(err, csv.ErrFieldCount) {
		t.Errorf("error = %v, want it to wrap csv.ErrFieldCount", err)
	}
}

func TestLoadReader_Audit(t *testing.T) {
	s, buf := newTestSession(t)
	loadString(t, s, "CF,NOME,DN,SALARIO\n", 4)

	want := "IDRUN=4, Operazione=Costruttore, Stato=OK, File=test.csv, Data=2026-10-14 09:30:00\n"
	if got := buf.String(); got != want {
		t.Errorf("audit = %q, want %q", got, want)
	}
}

func TestLoadReader_Cancelled(t *testing.T) {
	s, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadReader(ctx, strings.NewReader("CF,NOME,DN,SALARIO\na,b,c,d\n"), "x.csv", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Flusso.csv")
	if err := os.WriteFile(path, []byte("CF,NOME,DN,SALARIO\nABCDEFGHIJKLMNOP,Mario,1990-05-15,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, buf := newTestSession(t)
	tbl, err := s.Load(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tbl.Count() != 1 || tbl.Source() != path {
		t.Errorf("Count=%d Source=%q", tbl.Count(), tbl.Source())
	}
	if !strings.Contains(buf.String(), "File="+path) {
		t.Errorf("audit missing file path: %q", buf.String())
	}

	if _, err := s.Load(context.Background(), filepath.Join(dir, "missing.csv"), 2); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}

// A reader of known size reports its size and load progress on the
// diagnostic log.
func TestLoadReader_LogsSizeAndProgress(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("CF,NOME,DN,SALARIO\n")
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&sb, "RSSMRA80A01H%04d,Mario Rossi,1990-05-15,%d\n", i, 1000+i)
	}
	data := sb.String()

	var diag bytes.Buffer
	s := NewSession(SessionOptions{
		Logger: logging.New(&diag, "debug", "text"),
		Now:    func() time.Time { return testNow },
	})
	tbl, err := s.LoadReader(context.Background(), strings.NewReader(data), "big.csv", 1)
	if err != nil {
		t.Fatalf("LoadReader() error = %v", err)
	}
	if tbl.Count() != 2000 {
		t.Fatalf("Count() = %d, want 2000", tbl.Count())
	}

	log := diag.String()
	if !strings.Contains(log, fmt.Sprintf("size=%d", len(data))) {
		t.Errorf("log missing size=%d:\n%s", len(data), log)
	}
	if !strings.Contains(log, "load progress") {
		t.Errorf("log missing progress lines:\n%s", log)
	}
}

func TestSizeOf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tests := []struct {
		name string
		r    interface{ Read([]byte) (int, error) }
		want int64
	}{
		{"file", f, 5},
		{"strings reader", strings.NewReader("abc"), 3},
		{"bytes reader", bytes.NewReader([]byte("abcd")), 4},
		{"unknown", &bytes.Buffer{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizeOf(tt.r); got != tt.want {
				t.Errorf("sizeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}
