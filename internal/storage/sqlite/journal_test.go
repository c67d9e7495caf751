package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/dlrarb/internal/arb"
	"github.com/hetulpatel/dlrarb/internal/models"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func result(source models.Source, ticker string, bps float64) tick.Result {
	row := arb.Row{
		Ticker:       ticker,
		Maturity:     time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC),
		Days:         60,
		Bid:          1500,
		Ask:          1505,
		Strategy:     arb.StrategyCarry,
		MaxSpreadBps: bps,
	}
	return tick.Result{
		TickID:      "tick-" + ticker,
		Source:      source,
		Timestamp:   time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC),
		Spot:        models.Price(1450.5),
		SpotMethod:  models.SpotReference,
		FundingRate: 0.35,
		Rows:        []arb.Row{row},
		Best:        &row,
	}
}

func TestRecordBestAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordBest(ctx, result(models.SourceRofex, "DLR/ENE26A", 651)))
	require.NoError(t, store.RecordBest(ctx, result(models.SourceAmbito, "DLR/JAN26", 300)))
	require.NoError(t, store.RecordBest(ctx, result(models.SourceRofex, "DLR/FEB26A", 700)))

	all, err := store.RecentBest(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "DLR/FEB26A", all[0].Ticker)

	rofex, err := store.RecentBest(ctx, "rofex", 10)
	require.NoError(t, err)
	require.Len(t, rofex, 2)
	assert.Equal(t, string(arb.StrategyCarry), rofex[0].Strategy)
	assert.InDelta(t, 700, rofex[0].MaxSpreadBps, 1e-9)
	assert.True(t, rofex[0].Spot.Valid)
	assert.Equal(t, time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC), rofex[0].ObservedAt)
	assert.NotEmpty(t, rofex[0].Fingerprint)
}

func TestRecordBestSkipsEmptyTick(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordBest(ctx, tick.Result{Source: models.SourceMock}))
	entries, err := store.RecentBest(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearAndMigrate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordBest(ctx, result(models.SourceRofex, "DLR/ENE26A", 651)))
	require.NoError(t, store.ClearTables(ctx))
	entries, err := store.RecentBest(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.DropTables(ctx))
	_, err = store.RecentBest(ctx, "", 0)
	assert.Error(t, err)
}
