// Package bytesize parses human-friendly byte size strings such as
// "64MB" or "1.5GB" into byte counts.
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// suffixes is ordered longest-first so "KB" is matched before "B".
var suffixes = []struct {
	unit       string
	multiplier int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// Parse converts a size string to bytes. Units are 1024-based and
// case-insensitive; a bare number is taken as bytes. Fractional values
// like "1.5GB" are allowed and rounded down.
func Parse(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	number := s
	multiplier := int64(1)
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix.unit) {
			number = strings.TrimSpace(strings.TrimSuffix(s, suffix.unit))
			multiplier = suffix.multiplier
			break
		}
	}
	if number == "" {
		return 0, fmt.Errorf("size %q has no numeric value", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("size %q is negative", s)
	}

	bytes := value * float64(multiplier)
	if bytes > math.MaxInt64 {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return int64(bytes), nil
}

// Format renders a byte count with the largest unit that divides it
// cleanly, falling back to a fractional representation.
func Format(n int64) string {
	for _, suffix := range suffixes {
		if suffix.multiplier == 1 {
			break
		}
		if n >= suffix.multiplier {
			value := float64(n) / float64(suffix.multiplier)
			return strings.TrimSuffix(strconv.FormatFloat(value, 'f', 1, 64), ".0") + suffix.unit
		}
	}
	return strconv.FormatInt(n, 10) + "B"
}
