package chain

import (
	"sort"
	"time"

	"github.com/hetulpatel/dlrarb/internal/models"
)

// Normalizer turns provider rows into contracts ready for the monitor: it derives
// maturity and days-to-expiry, gap-fills quotes and drops rows that cannot be dated.
type Normalizer struct {
	Policy     MaturityPolicy
	HalfSpread float64
	Location   *time.Location
	Now        func() time.Time
}

// NewNormalizer returns a Normalizer with the package defaults.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Policy:     LastBusinessDay,
		HalfSpread: DefaultHalfSpread,
		Location:   time.UTC,
		Now:        time.Now,
	}
}

// Today returns the current civil date in the normalizer's location.
func (n *Normalizer) Today() time.Time {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now().In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Maturity returns the expiry date for a contract month under the configured policy.
func (n *Normalizer) Maturity(year int, month time.Month) time.Time {
	return MonthEnd(year, month, n.Policy, n.Location)
}

// Finalize stamps maturity/days on c and gap-fills its quotes. It returns false when the
// contract must be dropped (non-positive days to expiry).
func (n *Normalizer) Finalize(c *models.Contract, year int, month time.Month) bool {
	c.Maturity = n.Maturity(year, month)
	c.Days = DaysToExpiry(n.Today(), c.Maturity)
	if c.Days <= 0 {
		return false
	}
	GapFill(c, n.HalfSpread)
	return true
}

// SortByDays orders contracts by days to expiry, keeping provider order on ties.
func SortByDays(contracts []models.Contract) {
	sort.SliceStable(contracts, func(i, j int) bool {
		return contracts[i].Days < contracts[j].Days
	})
}

// CountSynthetic returns how many contracts carry synthesized quotes.
func CountSynthetic(contracts []models.Contract) int {
	n := 0
	for _, c := range contracts {
		if c.Synthetic {
			n++
		}
	}
	return n
}
