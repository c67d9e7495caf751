package chain

import "github.com/hetulpatel/dlrarb/internal/models"

// DefaultHalfSpread is the symmetric synthetic half-spread (0.01%) applied around a
// reference price when a side of the book is missing.
const DefaultHalfSpread = 0.0001

// Reference returns the price used to fill missing quotes: settlement, then closing,
// then last. Each candidate must be positive.
func Reference(c models.Contract) (float64, string, bool) {
	switch {
	case models.Positive(c.Settlement):
		return *c.Settlement, "settlement", true
	case models.Positive(c.Closing):
		return *c.Closing, "closing", true
	case models.Positive(c.Last):
		return *c.Last, "last", true
	}
	return 0, "", false
}

// GapFill synthesizes the missing side(s) of c around the reference price and flags the
// contract as synthetic. It reports whether anything was filled.
func GapFill(c *models.Contract, halfSpread float64) bool {
	if c.Bid != nil && c.Ask != nil {
		return false
	}
	ref, name, ok := Reference(*c)
	if !ok {
		return false
	}
	if c.Bid == nil {
		c.Bid = models.Price(ref * (1 - halfSpread))
	}
	if c.Ask == nil {
		c.Ask = models.Price(ref * (1 + halfSpread))
	}
	c.Synthetic = true
	c.FallbackRef = name
	return true
}
