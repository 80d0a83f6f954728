package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse matches every structural parse failure via errors.Is.
var ErrParse = errors.New("malformed table")

// ParseError reports a structural problem at a given physical line.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse")
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// DecodeError reports that none of the candidate encodings fit the input.
type DecodeError struct {
	Tried []Encoding
	Errs  []error
}

func (e *DecodeError) Error() string {
	names := make([]string, len(e.Tried))
	for i, enc := range e.Tried {
		names[i] = string(enc)
	}
	return fmt.Sprintf("decode: no candidate encoding fits (tried %s): %v",
		strings.Join(names, ", "), errors.Join(e.Errs...))
}

func (e *DecodeError) Unwrap() []error { return e.Errs }
