package models

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	RawPrefix        = "data/raw/"
	IntegratedPrefix = "data/integrated/"

	// ExtractionDateLayout renders dates as DD_MM_YYYY.
	ExtractionDateLayout = "02_01_2006"
)

// BaseName returns the file name of p without directory or extension.
func BaseName(p string) string {
	name := filepath.Base(p)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// RawKey is the archive key of a raw export: data/raw/{base}_{DD_MM_YYYY}.csv.
// Raw keys carry the extraction date so every run keeps its own copy.
func RawKey(base string, extractedAt time.Time) string {
	return path.Join(RawPrefix, base+"_"+extractedAt.Format(ExtractionDateLayout)+".csv")
}

// IntegratedKey is the key of a cleaned table: data/integrated/{base}.csv.
// Integrated keys are not dated; each run overwrites the previous cleaned copy.
func IntegratedKey(base string) string {
	return path.Join(IntegratedPrefix, base+".csv")
}
