// Package utils provides shared calendar, ticker, and formatting helpers
// for krxagent.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatComma formats an integer with thousands separators (1,234,567).
func FormatComma(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	if len(s) > 3 {
		var parts []string
		for len(s) > 3 {
			parts = append([]string{s[len(s)-3:]}, parts...)
			s = s[:len(s)-3]
		}
		s = s + "," + strings.Join(parts, ",")
	}

	if negative {
		return "-" + s
	}
	return s
}

// FormatCommaFloat formats a float with thousands separators and the given
// number of decimal places (12345.678, 2 → "12,345.68").
func FormatCommaFloat(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	s := fmt.Sprintf("%.*f", decimals, v)
	dot := strings.IndexByte(s, '.')
	intPart := s
	frac := ""
	if dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var n int64
	fmt.Sscanf(intPart, "%d", &n)
	out := FormatComma(n) + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatWon renders a price the way the answers quote it: rounded to whole
// won with thousands separators and the 원 unit (72,300원).
func FormatWon(price float64) string {
	return FormatCommaFloat(price, 0) + "원"
}

// FormatShares renders a volume figure with the 주 unit (1,234,567주).
func FormatShares(volume float64) string {
	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		return "-주"
	}
	return FormatComma(int64(math.Round(volume))) + "주"
}

// FormatPct renders a signed percentage with two decimals (+2.45%, -1.23%).
func FormatPct(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

// FormatIndexLevel renders a composite index level with two decimals and
// thousands separators (2,894.62).
func FormatIndexLevel(level float64) string {
	return FormatCommaFloat(level, 2)
}
