package tick

import (
	"errors"
	"fmt"
	"math"
)

// Operator input bounds.
const (
	MaxFundingRate   = 0.80
	MaxCommissionPct = 0.5
	MaxSimSpreadBps  = 500.0

	DefaultFundingRate = 0.35
)

// ErrInvalidParams wraps every parameter validation failure.
var ErrInvalidParams = errors.New("invalid tick parameters")

// Params are the operator inputs for one evaluation cycle.
type Params struct {
	// FundingRate is the annualized caución rate that overrides the "1d" tenor.
	FundingRate float64 `json:"funding_rate"`
	// CommissionPct is a per-side fee in percent (0.1 = 0.1%).
	CommissionPct float64 `json:"commission_pct"`
	// SimSpreadBps widens mock quotes symmetrically around Last. Ignored for real feeds.
	SimSpreadBps   float64 `json:"sim_spread_bps"`
	AllowSynthetic bool    `json:"allow_synthetic"`
}

// DefaultParams mirrors the operator defaults.
func DefaultParams() Params {
	return Params{FundingRate: DefaultFundingRate}
}

// Validate checks every input against its bounds.
func (p Params) Validate() error {
	if !inRange(p.FundingRate, MaxFundingRate) {
		return fmt.Errorf("%w: funding rate %.4f outside [0, %.2f]", ErrInvalidParams, p.FundingRate, MaxFundingRate)
	}
	if !inRange(p.CommissionPct, MaxCommissionPct) {
		return fmt.Errorf("%w: commission %.4f%% outside [0, %.2f]", ErrInvalidParams, p.CommissionPct, MaxCommissionPct)
	}
	if !inRange(p.SimSpreadBps, MaxSimSpreadBps) {
		return fmt.Errorf("%w: simulated spread %.1f bps outside [0, %.0f]", ErrInvalidParams, p.SimSpreadBps, MaxSimSpreadBps)
	}
	return nil
}

// inRange reports whether v is a finite number in [0, hi].
func inRange(v, hi float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= 0 && v <= hi
}
