package models

import (
	"time"

	"github.com/google/uuid"
)

// SpotMethod records which path produced the snapshot's spot price.
type SpotMethod string

const (
	SpotReference     SpotMethod = "reference"
	SpotNearestFuture SpotMethod = "nearest_future"
	SpotUnresolved    SpotMethod = "unresolved"
)

// DefaultFundingTenor is the tenor the operator's funding rate overrides.
const DefaultFundingTenor = "1d"

// Diagnostics counts what the feed absorbed while building the snapshot.
type Diagnostics struct {
	FetchFailures   int `json:"fetch_failures"`
	DroppedRecords  int `json:"dropped_records"`
	SyntheticQuotes int `json:"synthetic_quotes"`
}

// MarketSnapshot is the uniform per-tick view every feed produces. It is treated as an
// immutable value: With* methods return modified copies.
type MarketSnapshot struct {
	ID           string             `json:"id"`
	Source       Source             `json:"source"`
	Timestamp    time.Time          `json:"timestamp"`
	Spot         *float64           `json:"spot,omitempty"`
	SpotMethod   SpotMethod         `json:"spot_method"`
	FundingRates map[string]float64 `json:"funding_rates"`
	FuturesChain []Contract         `json:"futures_chain"`
	Diagnostics  Diagnostics        `json:"diagnostics"`
}

// NewSnapshot stamps a new snapshot with a fresh ID.
func NewSnapshot(source Source, ts time.Time, rates map[string]float64, chain []Contract) MarketSnapshot {
	if rates == nil {
		rates = map[string]float64{}
	}
	return MarketSnapshot{
		ID:           uuid.NewString(),
		Source:       source,
		Timestamp:    ts,
		SpotMethod:   SpotUnresolved,
		FundingRates: rates,
		FuturesChain: chain,
	}
}

// IsEmpty reports whether the chain has no contracts.
func (s MarketSnapshot) IsEmpty() bool {
	return len(s.FuturesChain) == 0
}

// HasSpot reports whether a positive spot price is available.
func (s MarketSnapshot) HasSpot() bool {
	return Positive(s.Spot)
}

// FundingRate returns the rate for tenor, or 0 when the tenor is absent.
func (s MarketSnapshot) FundingRate(tenor string) float64 {
	return s.FundingRates[tenor]
}

// WithFundingRate returns a copy with rates[tenor] replaced.
func (s MarketSnapshot) WithFundingRate(tenor string, rate float64) MarketSnapshot {
	rates := make(map[string]float64, len(s.FundingRates)+1)
	for k, v := range s.FundingRates {
		rates[k] = v
	}
	rates[tenor] = rate
	out := s
	out.FundingRates = rates
	return out
}

// WithChain returns a copy carrying chain instead of the current one.
func (s MarketSnapshot) WithChain(chain []Contract) MarketSnapshot {
	out := s
	out.FuturesChain = chain
	return out
}

// CloneChain deep-copies the futures chain.
func (s MarketSnapshot) CloneChain() []Contract {
	out := make([]Contract, len(s.FuturesChain))
	for i, c := range s.FuturesChain {
		out[i] = c.Clone()
	}
	return out
}
