package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names a candidate text encoding for raw exports.
type Encoding string

const (
	UTF8        Encoding = "utf-8"
	Latin1      Encoding = "latin1"
	Windows1252 Encoding = "windows-1252"
)

// DefaultEncodings is the order in which raw exports are decoded.
var DefaultEncodings = []Encoding{UTF8, Latin1}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseEncoding normalises common spellings of the supported encodings.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return Latin1, nil
	case "windows-1252", "cp1252":
		return Windows1252, nil
	default:
		return "", fmt.Errorf("parser: unsupported encoding %q", name)
	}
}

// Decode converts data to a UTF-8 string using the first candidate
// encoding under which every byte sequence is valid.
func Decode(data []byte, candidates ...Encoding) (string, Encoding, error) {
	if len(candidates) == 0 {
		candidates = DefaultEncodings
	}

	var errs []error
	for _, enc := range candidates {
		text, err := enc.decode(data)
		if err == nil {
			return text, enc, nil
		}
		errs = append(errs, err)
	}
	return "", "", &DecodeError{Tried: candidates, Errs: errs}
}

func (e Encoding) decode(data []byte) (string, error) {
	switch e {
	case UTF8:
		data = bytes.TrimPrefix(data, utf8BOM)
		if off := invalidUTF8Offset(data); off >= 0 {
			return "", fmt.Errorf("%s: invalid byte 0x%02x at offset %d", e, data[off], off)
		}
		return string(data), nil
	case Latin1:
		return decodeSingleByte(e, charmap.ISO8859_1, data)
	case Windows1252:
		return decodeSingleByte(e, charmap.Windows1252, data)
	default:
		return "", fmt.Errorf("unsupported encoding %q", string(e))
	}
}

func decodeSingleByte(e Encoding, cm *charmap.Charmap, data []byte) (string, error) {
	out, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e, err)
	}
	// Bytes with no mapping in the charset decode to U+FFFD.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("%s: byte sequence has no mapping", e)
	}
	return string(out), nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
