package models

import "time"

// RegionCode selects which state's listings are exported (e.g. "MG", "SP").
type RegionCode string

// RawListing is one region's export as downloaded from the portal. Once
// archived under Key it is never modified.
type RawListing struct {
	Region      RegionCode
	LocalPath   string
	BaseName    string
	Key         string
	ExtractedAt time.Time
}

// CleanedTable describes the result of transforming a RawListing: only
// complete rows survive, under the header taken from the export.
type CleanedTable struct {
	SourceKey   string
	Key         string
	LocalPath   string
	Columns     []string
	Encoding    string
	RawRows     int
	RowCount    int
	DroppedRows int
}

// Table is an in-memory tabular structure. Rows are indexed densely from 0
// and each row has exactly len(Columns) fields.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows (header excluded).
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
