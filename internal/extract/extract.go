// Package extract implements the pattern-matching fallback used when a source
// has no usable API response. A field is extracted by trying an ordered list
// of strategies against the raw payload; the first one that yields a value
// wins. Absence of data is an expected outcome and is reported through the
// Result, never as an error.
package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of running a strategy list against a payload.
type Result struct {
	OK       bool
	Value    string
	Strategy string
}

// Strategy maps a raw payload to a candidate value. Apply returns the value
// and whether the pattern matched.
type Strategy struct {
	Name  string
	Apply func(payload string) (string, bool)
}

// Pattern builds a Strategy from a regular expression. The first capture
// group is the extracted value; a pattern without groups extracts the whole
// match.
func Pattern(name string, re *regexp.Regexp) Strategy {
	return Strategy{
		Name: name,
		Apply: func(payload string) (string, bool) {
			m := re.FindStringSubmatch(payload)
			if m == nil {
				return "", false
			}
			if len(m) > 1 {
				return strings.TrimSpace(m[1]), m[1] != ""
			}
			return strings.TrimSpace(m[0]), m[0] != ""
		},
	}
}

// First runs the strategies in order and returns the first match.
func First(payload string, strategies []Strategy) Result {
	for _, s := range strategies {
		if v, ok := s.Apply(payload); ok {
			return Result{OK: true, Value: v, Strategy: s.Name}
		}
	}
	return Result{}
}

// Number runs the strategies in order and converts the first match to an
// integer via ParseAbbreviated. A match that fails numeric conversion falls
// through to the next strategy.
func Number(payload string, strategies []Strategy) (int64, Result) {
	for _, s := range strategies {
		v, ok := s.Apply(payload)
		if !ok {
			continue
		}
		n, err := ParseAbbreviated(v)
		if err != nil {
			continue
		}
		return n, Result{OK: true, Value: v, Strategy: s.Name}
	}
	return 0, Result{}
}

// suffixMultipliers maps abbreviation suffixes to their multiplier. Suffixes
// are matched case-insensitively.
var suffixMultipliers = map[string]float64{
	"K": 1e3,
	"M": 1e6,
	"B": 1e9,
}

// ParseAbbreviated parses a human-formatted count: plain digits ("842"),
// locale separators ("1,234,567"), or suffix abbreviations ("12.3K", "1.5M").
// Malformed input returns an error, not a panic.
func ParseAbbreviated(s string) (int64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric value %q", s)
	}

	multiplier := 1.0
	upper := strings.ToUpper(cleaned)
	for suffix, mult := range suffixMultipliers {
		if strings.HasSuffix(upper, suffix) {
			multiplier = mult
			cleaned = cleaned[:len(cleaned)-len(suffix)]
			break
		}
	}
	if cleaned == "" {
		return 0, fmt.Errorf("numeric value %q has suffix but no digits", s)
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing numeric value %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative numeric value %q", s)
	}
	// The float product can land just below the integer (8.29 * 1e6 is
	// 8289999.999...), so round instead of truncating.
	return int64(math.Round(f * multiplier)), nil
}
