package ml

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// ExportCSV writes the dataset to a delimited text file for inspection:
// one header row of feature names plus "label", then one row per sample.
func (d Dataset) ExportCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string(nil), FeatureNames...), "label")
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, NumFeatures+1)
	for i, x := range d.X {
		for j, v := range x {
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		row[NumFeatures] = d.Y[i].String()
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
