// Package numparse converts Argentine-formatted numbers ("1.050,50") into floats while
// recording whether parsing succeeded or the 0.0 fallback was used.
package numparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is the outcome of a parse. When Parsed is false, Value holds the 0.0 fallback
// and Err explains why.
type Number struct {
	Value  float64
	Parsed bool
	Raw    string
	Err    error
}

// Positive reports whether the parse succeeded with a value above zero.
func (n Number) Positive() bool {
	return n.Parsed && n.Value > 0
}

// Ptr returns the value when positive, nil otherwise. Providers report missing quotes as
// empty strings or zeros, so both collapse to "absent".
func (n Number) Ptr() *float64 {
	if !n.Positive() {
		return nil
	}
	v := n.Value
	return &v
}

func fallback(raw string, err error) Number {
	return Number{Value: 0, Parsed: false, Raw: raw, Err: err}
}

var thousandsOnly = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

// ParseLocale parses s using the Argentine convention: '.' groups thousands and ','
// separates decimals. Strings without a comma that are not thousands-grouped are read as
// plain decimals ("1050.50").
func ParseLocale(s string) Number {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return fallback(raw, fmt.Errorf("empty number"))
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsOnly.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback(raw, fmt.Errorf("parse %q: %w", raw, err))
	}
	v, _ := d.Float64()
	return Number{Value: v, Parsed: true, Raw: raw}
}

// FromJSON accepts the loosely typed values vendor payloads carry (string, number,
// json.Number, nil).
func FromJSON(v any) Number {
	switch t := v.(type) {
	case nil:
		return fallback("", fmt.Errorf("missing value"))
	case float64:
		return Number{Value: t, Parsed: true, Raw: decimal.NewFromFloat(t).String()}
	case int:
		return Number{Value: float64(t), Parsed: true, Raw: fmt.Sprint(t)}
	case json.Number:
		return ParseLocale(t.String())
	case string:
		return ParseLocale(t)
	default:
		return fallback(fmt.Sprint(t), fmt.Errorf("unsupported type %T", v))
	}
}
