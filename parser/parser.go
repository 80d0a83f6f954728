// Package parser turns raw portal exports into tables. Exports arrive in an
// unknown text encoding and in one of several dialects, so decoding and
// splitting are both driven by explicit options.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"leiloes-caixa/models"
)

// Options controls how a raw export is decoded and split into rows.
type Options struct {
	Dialect   Dialect
	BadLines  BadLines
	Encodings []Encoding
}

// Result is a parsed table together with how it was obtained.
type Result struct {
	Table       *models.Table
	Encoding    Encoding
	SkippedRows int
}

// Read decodes data with the candidate encodings, in order, and parses the
// decoded text.
func Read(data []byte, opts Options) (*Result, error) {
	text, enc, err := Decode(data, opts.Encodings...)
	if err != nil {
		return nil, err
	}

	res, err := Parse(strings.NewReader(text), opts)
	if err != nil {
		return nil, err
	}
	res.Encoding = enc
	return res, nil
}

// Parse splits already-decoded text into a table. Lines before the
// dialect's header row are discarded and the header row itself becomes the
// column labels. Short rows are padded with empty fields; rows with extra
// non-empty fields are handled according to opts.BadLines.
func Parse(r io.Reader, opts Options) (*Result, error) {
	d := opts.Dialect
	if d.Delimiter == 0 {
		d = DialectComma
	}

	reader := csv.NewReader(r)
	reader.Comma = d.Delimiter
	reader.FieldsPerRecord = -1
	// Descriptions carry stray quotes (Apto 24" tela); keep them as text.
	reader.LazyQuotes = true

	var header []string
	for i := 0; i <= d.HeaderRow; i++ {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil, &ParseError{Msg: fmt.Sprintf("no header: %d non-empty lines, header expected on line %d", i, d.HeaderRow+1)}
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}
		header = rec
	}

	columns, err := normaliseHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{Table: &models.Table{Columns: columns, Rows: make([][]string, 0)}}
	width := len(columns)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}

		switch {
		case len(rec) < width:
			rec = append(rec, make([]string, width-len(rec))...)
		case len(rec) > width:
			if !allBlank(rec[width:]) {
				if opts.BadLines == BadLinesSkip {
					res.SkippedRows++
					continue
				}
				line, _ := reader.FieldPos(0)
				return nil, &ParseError{Line: line, Msg: fmt.Sprintf("expected %d fields, saw %d", width, len(rec))}
			}
			rec = rec[:width]
		}
		res.Table.Rows = append(res.Table.Rows, rec)
	}

	return res, nil
}

// normaliseHeader drops labels left by a trailing delimiter, names blank
// labels "Unnamed: i" and suffixes repeated labels with ".1", ".2", ...
func normaliseHeader(header []string) ([]string, error) {
	end := len(header)
	for end > 0 && strings.TrimSpace(header[end-1]) == "" {
		end--
	}
	if end == 0 {
		return nil, &ParseError{Msg: "header row has no labels"}
	}

	columns := make([]string, 0, end)
	used := make(map[string]bool, end)
	for i, label := range header[:end] {
		label = strings.TrimSpace(strings.TrimPrefix(label, "\ufeff"))
		if label == "" {
			label = fmt.Sprintf("Unnamed: %d", i)
		}
		unique := label
		for n := 1; used[unique]; n++ {
			unique = fmt.Sprintf("%s.%d", label, n)
		}
		used[unique] = true
		columns = append(columns, unique)
	}
	return columns, nil
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Msg: "malformed csv", Err: pe.Err}
	}
	return &ParseError{Msg: "read", Err: err}
}
