// Package parse decodes raw channel lines into numeric sample values.
package parse

import (
	"bytes"
	"math"
	"strconv"
	"unicode/utf8"
)

// Parse decodes line as UTF-8 text, trims surrounding whitespace and converts
// it to a float64. ok is false for lines that are not valid UTF-8, are empty,
// do not hold a number, or hold a non-finite value. Parse has no side effects.
func Parse(line []byte) (value float64, ok bool) {
	if !utf8.Valid(line) {
		return 0, false
	}
	text := bytes.TrimSpace(line)
	if len(text) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Text returns the trimmed text of line, as shown in the transcript.
func Text(line []byte) string {
	return string(bytes.TrimSpace(line))
}
