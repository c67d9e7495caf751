package collectors

import (
	"context"

	"github.com/hetulpatel/dlrarb/internal/models"
)

// Feed is implemented by every market-data provider (ROFEX API, Ámbito scraper, mock).
// Each provider is responsible for fetching, normalizing, and returning a fresh snapshot
// per call. Only configuration errors are returned; an unavailable upstream produces a
// snapshot with an empty chain, so callers must check emptiness.
type Feed interface {
	Name() string
	Snapshot(ctx context.Context, allowSynthetic bool) (models.MarketSnapshot, error)
}
