// Package spot resolves the USD/ARS reference spot price used to annualize futures
// premia: the wholesale quote when available, otherwise the nearest future discounted
// back at a fixed assumed rate.
package spot

import (
	"context"

	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/models"
)

// DefaultFallbackRate is the annualized rate used to discount the nearest future back to
// a spot approximation.
const DefaultFallbackRate = 0.35

// ReferenceSource provides an external wholesale spot quote.
type ReferenceSource interface {
	WholesaleSpot(ctx context.Context) (float64, error)
}

// Resolution describes the outcome of a resolve attempt.
type Resolution struct {
	Price  float64
	Method models.SpotMethod
	// Ticker, Days and Basis describe the contract used by the nearest-future fallback.
	Ticker string
	Days   int
	Basis  string
}

// OK reports whether a positive spot was resolved.
func (r Resolution) OK() bool {
	return r.Method != models.SpotUnresolved && r.Price > 0
}

// Ptr returns the price as a nullable value.
func (r Resolution) Ptr() *float64 {
	if !r.OK() {
		return nil
	}
	return models.Price(r.Price)
}

// Resolver implements the spot fallback chain.
type Resolver struct {
	Reference    ReferenceSource
	FallbackRate float64
}

// NewResolver builds a resolver; a nil reference skips straight to the chain fallback.
func NewResolver(ref ReferenceSource, fallbackRate float64) *Resolver {
	return &Resolver{Reference: ref, FallbackRate: fallbackRate}
}

// Resolve never returns an error: reference failures fall through to the chain.
func (r *Resolver) Resolve(ctx context.Context, chain []models.Contract) Resolution {
	if r.Reference != nil {
		price, err := r.Reference.WholesaleSpot(ctx)
		switch {
		case err != nil:
			logging.Warnf("[spot] reference unavailable: %v", err)
		case price > 0:
			return Resolution{Price: price, Method: models.SpotReference}
		default:
			logging.Warnf("[spot] reference returned non-positive price %.4f", price)
		}
	}
	return FromNearest(chain, r.FallbackRate)
}

// FromNearest derives spot from the contract with the fewest days to expiry, taking its
// settlement, last or mid price (first positive wins) and discounting it at rate.
func FromNearest(chain []models.Contract, rate float64) Resolution {
	idx := -1
	for i, c := range chain {
		if idx == -1 || c.Days < chain[idx].Days {
			idx = i
		}
	}
	if idx == -1 {
		return Resolution{Method: models.SpotUnresolved}
	}
	nearest := chain[idx]

	price, basis := nearestPrice(nearest)
	if price <= 0 {
		return Resolution{Method: models.SpotUnresolved, Ticker: nearest.Ticker, Days: nearest.Days}
	}
	if nearest.Days > 0 {
		price = Discount(price, rate, nearest.Days)
	}
	logging.Infof("[spot] using nearest future %s (%s, %d days) as spot: %.2f", nearest.Ticker, basis, nearest.Days, price)
	return Resolution{
		Price:  price,
		Method: models.SpotNearestFuture,
		Ticker: nearest.Ticker,
		Days:   nearest.Days,
		Basis:  basis,
	}
}

func nearestPrice(c models.Contract) (float64, string) {
	switch {
	case models.Positive(c.Settlement):
		return *c.Settlement, "settlement"
	case models.Positive(c.Last):
		return *c.Last, "last"
	case c.Bid != nil && c.Ask != nil:
		if mid := (*c.Bid + *c.Ask) / 2; mid > 0 {
			return mid, "mid"
		}
	}
	return 0, ""
}

// Discount converts a forward price to spot with simple annualization over 365 days.
func Discount(price, rate float64, days int) float64 {
	return price / (1 + rate*float64(days)/365)
}
