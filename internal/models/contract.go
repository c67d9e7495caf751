package models

import "time"

// Source identifies the feed a snapshot came from.
type Source string

const (
	SourceRofex  Source = "rofex"
	SourceAmbito Source = "ambito"
	SourceMock   Source = "mock"
)

// Contract is a normalized futures contract row. Prices are nil when the provider did not
// report them. Maturity is zero and Days is 0 when the maturity could not be derived.
type Contract struct {
	Ticker     string    `json:"ticker"`
	Maturity   time.Time `json:"maturity"`
	Days       int       `json:"days"`
	Bid        *float64  `json:"bid,omitempty"`
	Ask        *float64  `json:"ask,omitempty"`
	Last       *float64  `json:"last,omitempty"`
	Opening    *float64  `json:"opening,omitempty"`
	Closing    *float64  `json:"closing,omitempty"`
	Settlement *float64  `json:"settlement,omitempty"`

	// diagnostic only
	BidSize      *float64 `json:"bid_size,omitempty"`
	AskSize      *float64 `json:"ask_size,omitempty"`
	LastSize     *float64 `json:"last_size,omitempty"`
	Volume       *float64 `json:"volume,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`

	// Synthetic is set when at least one side of the quote was manufactured from a
	// reference price; FallbackRef names that reference (settlement|closing|last).
	Synthetic   bool   `json:"synthetic"`
	FallbackRef string `json:"fallback_ref,omitempty"`
}

// Price returns a pointer to v.
func Price(v float64) *float64 {
	return &v
}

// Positive reports whether p is present and strictly positive.
func Positive(p *float64) bool {
	return p != nil && *p > 0
}

// Value returns *p or 0 when p is nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Clone returns a deep copy so callers can adjust quotes without touching the original.
func (c Contract) Clone() Contract {
	out := c
	out.Bid = clonePrice(c.Bid)
	out.Ask = clonePrice(c.Ask)
	out.Last = clonePrice(c.Last)
	out.Opening = clonePrice(c.Opening)
	out.Closing = clonePrice(c.Closing)
	out.Settlement = clonePrice(c.Settlement)
	out.BidSize = clonePrice(c.BidSize)
	out.AskSize = clonePrice(c.AskSize)
	out.LastSize = clonePrice(c.LastSize)
	out.Volume = clonePrice(c.Volume)
	out.OpenInterest = clonePrice(c.OpenInterest)
	return out
}

func clonePrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
