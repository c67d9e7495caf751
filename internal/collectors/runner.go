package collectors

import (
	"context"
	"fmt"

	"github.com/hetulpatel/dlrarb/internal/breakers"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/models"
)

// RunTick performs one evaluation cycle: a single feed call followed by handleFn.
// There is no polling; the next tick is a fresh call from the caller with fresh upstream
// breakers. An empty chain is logged and still handed to handleFn so the caller can
// report it.
func RunTick(ctx context.Context, feed Feed, allowSynthetic bool, handleFn func(context.Context, models.MarketSnapshot) error) error {
	ctx = breakers.WithScope(ctx, breakers.NewScope(breakers.Settings{}))
	snap, err := feed.Snapshot(ctx, allowSynthetic)
	if err != nil {
		return fmt.Errorf("[%s] snapshot: %w", feed.Name(), err)
	}
	if snap.IsEmpty() {
		logging.Warnf("[%s] snapshot has no contracts", feed.Name())
	}
	if handleFn == nil {
		return nil
	}
	return handleFn(ctx, snap)
}
