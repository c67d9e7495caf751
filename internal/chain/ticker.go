package chain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Prefix is the DLR futures symbol prefix on ROFEX.
const Prefix = "DLR/"

// DefaultSeries is the lettered sub-series the live feed restricts to.
const DefaultSeries = "A"

// TickerFilter selects monthly DLR futures out of the full instrument list.
type TickerFilter struct {
	// MonthlyOnly drops multi-leg spreads and options.
	MonthlyOnly bool
	// SeriesOnly keeps only the lettered sub-series (e.g. DLR/ENE26A).
	SeriesOnly bool
	// Series is the trailing letter; defaults to DefaultSeries.
	Series string
}

func (f TickerFilter) series() string {
	if f.Series == "" {
		return DefaultSeries
	}
	return strings.ToUpper(f.Series)
}

// Keep reports whether symbol passes the filter.
func (f TickerFilter) Keep(symbol string) bool {
	if !strings.HasPrefix(symbol, Prefix) {
		return false
	}
	if !f.MonthlyOnly {
		return true
	}
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return false
	}
	month := parts[1]
	switch {
	case f.SeriesOnly:
		return isSeriesCode(month, f.series())
	default:
		return isMonthCode(month) || isSeriesCode(month, f.series())
	}
}

// Select filters, sorts and truncates symbols. limit <= 0 keeps everything.
func (f TickerFilter) Select(symbols []string, limit int) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if f.Keep(s) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func isMonthCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	return isAlpha(s[:3]) && isDigits(s[3:])
}

func isSeriesCode(s, series string) bool {
	if len(s) != 6 {
		return false
	}
	return isAlpha(s[:3]) && isDigits(s[3:5]) && s[5:] == series
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseAPITicker extracts the contract month from "DLR/ENE26" or "DLR/ENE26A".
func ParseAPITicker(symbol string) (int, time.Month, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ticker %q: not a single-segment contract", symbol)
	}
	code := parts[1]
	if len(code) == 6 && unicode.IsLetter(rune(code[5])) {
		code = code[:5]
	}
	return ParseMonthCode(code)
}
