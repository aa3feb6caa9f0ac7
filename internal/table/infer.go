package table

import (
	"math"
	"strconv"
	"strings"
)

// naValues are the cell texts read as the missing-value marker.
var naValues = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"#N/A": {},
	"None": {},
}

// IsNA reports whether s is one of the recognised missing-value spellings.
func IsNA(s string) bool {
	_, ok := naValues[s]
	return ok
}

// Infer converts a raw text cell into a typed scalar:
//
//  1. NA spellings (see IsNA) become nil
//  2. true/True/TRUE and false/False/FALSE become bool
//  3. integer literals that fit in int64 become int64
//  4. decimal or exponent literals, and inf/-inf, become float64
//  5. anything else is returned unchanged as string
//
// Surrounding whitespace is not trimmed, so " 1" stays text.
func Infer(s string) any {
	if IsNA(s) {
		return nil
	}
	switch s {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}
	if looksInteger(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		// overflowing integers still parse as floats below
	}
	if f, ok := parseFloat(s); ok {
		return f
	}
	return s
}

// InferText is the identity rule used when inference is disabled: only NA
// spellings are mapped to nil.
func InferText(s string) any {
	if IsNA(s) {
		return nil
	}
	return s
}

func looksInteger(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseFloat(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	}
	// strconv accepts hex floats, underscores-free forms and "infinity";
	// only plain decimal forms count as numbers here.
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			continue
		}
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
