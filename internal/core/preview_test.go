package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSessionPreview(t *testing.T) {
	s, audit := newTestSession(t)
	raw := loadString(t, s, mixedCSV, 1)
	audit.Reset()

	got, err := s.Preview(context.Background(), raw)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	wantSummary := PreviewSummary{
		TotalRows:    8,
		AcceptedRows: 2,
		RejectedRows: 6,
		FailedBy:     map[string]int{FlagSalario: 2, FlagDN: 1, FlagNome: 2, FlagCF: 1},
	}
	if diff := cmp.Diff(wantSummary, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	var lines []int
	for _, e := range got.ErrorSamples {
		lines = append(lines, e.LineNumber)
	}
	if diff := cmp.Diff([]int{3, 4, 5, 6, 8, 9}, lines); diff != "" {
		t.Errorf("error lines mismatch (-want +got):\n%s", diff)
	}

	empty := got.ErrorSamples[5]
	if diff := cmp.Diff([]string{FlagNome}, empty.Errors); diff != "" {
		t.Errorf("errors of line 9 mismatch (-want +got):\n%s", diff)
	}
	if _, ok := empty.Values[ColNome]; ok {
		t.Error("null NOME should be omitted from preview values")
	}

	if audit.Len() != 0 {
		t.Errorf("Preview wrote to the audit trail: %s", audit.String())
	}
	if raw.Count() != 8 || raw.Kind() != KindRaw {
		t.Error("Preview modified its input")
	}
}

func TestSessionPreview_Duplicates(t *testing.T) {
	s, _ := newTestSession(t)
	raw := loadString(t, s, "CF,NOME,DN,SALARIO\n"+
		"RSSMRA80A01H501X,Anna,1990-01-01,1000\n"+
		"ABCDEFGHIJKLMNOP,Luca,1990-01-01,1000\n"+
		"RSSMRA80A01H501X,Anna,1990-01-01,1000\n", 3)

	got, err := s.Preview(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}

	want := []DuplicatePreview{{CF: "RSSMRA80A01H501X", LineNumbers: []int{2, 4}}}
	if diff := cmp.Diff(want, got.DuplicateSamples); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
	if got.Summary.DuplicateInFile != 1 || got.Summary.AcceptedRows != 3 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if diff := cmp.Diff(PreviewResponse{RunID: 3, Source: "test.csv"}, *got,
		cmpopts.IgnoreFields(PreviewResponse{}, "Summary", "AcceptedSamples", "ErrorSamples", "DuplicateSamples", "ProcessingTimeMs")); diff != "" {
		t.Errorf("response header mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionPreview_Cancelled(t *testing.T) {
	s, _ := newTestSession(t)
	raw := loadString(t, s, mixedCSV, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Preview(ctx, raw); err == nil {
		t.Error("Preview() with cancelled context should fail")
	}
}
