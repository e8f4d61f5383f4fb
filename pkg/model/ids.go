package model

import (
	"math"
	"strings"
)

// CountyIDWidth is the width of a county FIPS code.
const CountyIDWidth = 5

// NormalizeID trims an identifier and left-pads all-digit ids with zeros to
// the county width. Anything else is upper-cased and returned as is.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if !IsDigits(id) {
		return strings.ToUpper(id)
	}
	if len(id) >= CountyIDWidth {
		return id
	}
	return strings.Repeat("0", CountyIDWidth-len(id)) + id
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
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

// IsCountyID reports whether id addresses a county rather than a state.
func IsCountyID(id string) bool {
	return IsDigits(strings.TrimSpace(id))
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
