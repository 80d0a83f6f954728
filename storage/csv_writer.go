package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"leiloes-caixa/models"
)

// CSVWriter writes tables to comma-delimited UTF-8 files: header first,
// one line per row, no index column.
type CSVWriter struct{}

func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// Write creates (or truncates) the file at path and writes t to it.
// Intermediate directories are created automatically.
func (c *CSVWriter) Write(path string, t *models.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}
