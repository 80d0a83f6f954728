package parser

import (
	"fmt"
	"strings"
)

// Dialect is a named combination of field delimiter and header position.
// Two export formats have been seen from the portal and neither is assumed
// to be the authoritative one, so the choice is made by configuration.
type Dialect struct {
	Name      string
	Delimiter rune
	// HeaderRow is the 0-based index, among non-empty physical lines, of the
	// line holding the column labels. Lines before it are discarded.
	HeaderRow int
}

var (
	// DialectComma is a comma-delimited file whose first line is the header.
	DialectComma = Dialect{Name: "comma", Delimiter: ',', HeaderRow: 0}

	// DialectSemicolonShifted is a semicolon-delimited file that opens with a
	// title line; the header is the second line.
	DialectSemicolonShifted = Dialect{Name: "semicolon_shifted", Delimiter: ';', HeaderRow: 1}
)

var dialects = map[string]Dialect{
	DialectComma.Name:            DialectComma,
	DialectSemicolonShifted.Name: DialectSemicolonShifted,
}

// ParseDialect looks a dialect up by name. The empty name selects DialectComma.
func ParseDialect(name string) (Dialect, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DialectComma, nil
	}
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("parser: unknown dialect %q (want %q or %q)",
			name, DialectComma.Name, DialectSemicolonShifted.Name)
	}
	return d, nil
}

func (d Dialect) String() string {
	return d.Name
}

// BadLines decides what happens to a row carrying more non-empty fields
// than the header has labels.
type BadLines int

const (
	BadLinesError BadLines = iota
	BadLinesSkip
)

// ParseBadLines converts "error" or "skip". The empty string selects BadLinesError.
func ParseBadLines(s string) (BadLines, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return BadLinesError, nil
	case "skip":
		return BadLinesSkip, nil
	default:
		return BadLinesError, fmt.Errorf("parser: unknown bad-lines policy %q (want \"error\" or \"skip\")", s)
	}
}

func (b BadLines) String() string {
	if b == BadLinesSkip {
		return "skip"
	}
	return "error"
}
