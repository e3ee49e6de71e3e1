package ml

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestExportCSV(t *testing.T) {
	var ds Dataset
	ds.Append(ExtractFeatures(Window{B1: 5.0, B2: 0.5, B3: 0.3, MeanNorm: 0.2}), Parkinsonian)
	ds.Append(ExtractFeatures(Window{B1: 0.001, B2: 0.001, B3: 0.001, MeanNorm: 0.05}), NoTremor)

	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := ds.ExportCSV(path); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 samples", len(rows))
	}
	if rows[0][0] != "b1" || rows[0][NumFeatures] != "label" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][NumFeatures] != "parkinsonian" || rows[2][NumFeatures] != "no_tremor" {
		t.Errorf("unexpected labels: %v, %v", rows[1][NumFeatures], rows[2][NumFeatures])
	}
}
