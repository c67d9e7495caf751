package mock

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/dlrarb/internal/models"
)

func TestSnapshotRequiresAllowSynthetic(t *testing.T) {
	feed := NewFeed(rand.New(rand.NewSource(1)))
	snap, err := feed.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	assert.False(t, snap.HasSpot())
}

func TestSnapshotShape(t *testing.T) {
	feed := NewFeed(rand.New(rand.NewSource(42)))
	feed.Now = func() time.Time { return time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC) }

	snap, err := feed.Snapshot(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, models.SourceMock, snap.Source)
	require.True(t, snap.HasSpot())
	assert.InDelta(t, 1450.50, *snap.Spot, 1e-12)
	assert.InDelta(t, 0.35, snap.FundingRate("1d"), 1e-12)
	require.Len(t, snap.FuturesChain, 6)

	for i, c := range snap.FuturesChain {
		days := 30 * (i + 1)
		assert.Equal(t, days, c.Days)
		assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days), c.Maturity)

		fair := 1450.50 * (1 + 0.40*float64(days)/365)
		assert.GreaterOrEqual(t, *c.Last, fair-5-0.01)
		assert.LessOrEqual(t, *c.Last, fair+10+0.01)
		assert.InDelta(t, 4, *c.Ask-*c.Bid, 0.011)
		assert.Less(t, *c.Bid, *c.Ask)
	}
	assert.Equal(t, "DLR/MOCK1", snap.FuturesChain[0].Ticker)
	assert.Equal(t, "DLR/MOCK6", snap.FuturesChain[5].Ticker)
}

func TestSnapshotIsDeterministicForSeed(t *testing.T) {
	a, _ := NewFeed(rand.New(rand.NewSource(7))).Snapshot(context.Background(), true)
	b, _ := NewFeed(rand.New(rand.NewSource(7))).Snapshot(context.Background(), true)
	for i := range a.FuturesChain {
		assert.Equal(t, *a.FuturesChain[i].Bid, *b.FuturesChain[i].Bid)
	}
}
