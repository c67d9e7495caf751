package tick

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/dlrarb/internal/arb"
	"github.com/hetulpatel/dlrarb/internal/metrics"
	"github.com/hetulpatel/dlrarb/internal/mock"
	"github.com/hetulpatel/dlrarb/internal/models"
)

type staticFeed struct {
	source models.Source
	snap   models.MarketSnapshot
	err    error

	inFlight int32
	maxSeen  int32
}

func (f *staticFeed) Name() string { return string(f.source) }

func (f *staticFeed) Snapshot(context.Context, bool) (models.MarketSnapshot, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return f.snap, f.err
}

func rofexFeed(chain ...models.Contract) *staticFeed {
	snap := models.NewSnapshot(models.SourceRofex, time.Now(), map[string]float64{"1d": 0.0}, chain)
	snap.Spot = models.Price(1450.50)
	snap.SpotMethod = models.SpotReference
	return &staticFeed{source: models.SourceRofex, snap: snap}
}

func quoted(ticker string, days int, bid, ask float64) models.Contract {
	return models.Contract{Ticker: ticker, Days: days, Bid: models.Price(bid), Ask: models.Price(ask), Last: models.Price((bid + ask) / 2)}
}

type recordingSinks struct {
	published []Result
	recorded  []Result
	changed   bool
	pubErr    error
	cacheErr  error
}

func (s *recordingSinks) PublishTick(_ context.Context, res Result) error {
	s.published = append(s.published, res)
	return s.pubErr
}

func (s *recordingSinks) Observe(context.Context, Result) (bool, error) {
	return s.changed, s.cacheErr
}

func (s *recordingSinks) RecordBest(_ context.Context, res Result) error {
	s.recorded = append(s.recorded, res)
	return nil
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.NoError(t, Params{FundingRate: 0.80, CommissionPct: 0.5, SimSpreadBps: 500}.Validate())

	for _, p := range []Params{
		{FundingRate: 0.81},
		{FundingRate: -0.01},
		{CommissionPct: 0.6},
		{SimSpreadBps: 501},
		{FundingRate: math.NaN()},
		{FundingRate: math.Inf(1)},
		{CommissionPct: math.NaN()},
		{CommissionPct: math.Inf(-1)},
		{SimSpreadBps: math.NaN()},
		{SimSpreadBps: math.Inf(1)},
	} {
		err := p.Validate()
		assert.ErrorIs(t, err, ErrInvalidParams, "%+v", p)
	}
}

func TestRunRejectsInvalidParams(t *testing.T) {
	feed := rofexFeed(quoted("DLR/ENE26A", 30, 1500, 1505))
	_, err := NewRunner(feed, nil).Run(context.Background(), Params{FundingRate: 2})
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Equal(t, int32(0), feed.maxSeen)
}

func TestRunOverridesFundingAndRecordsDetected(t *testing.T) {
	feed := rofexFeed(quoted("DLR/FEB26A", 60, 1520, 1525), quoted("DLR/ENE26A", 30, 1500, 1505))
	res, err := NewRunner(feed, nil).Run(context.Background(), Params{FundingRate: 0.42})
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "DLR/ENE26A", res.Rows[0].Ticker)
	assert.InDelta(t, 0.42, res.Rows[0].FundingCostTNA, 1e-12)
	require.NotNil(t, res.DetectedRate)
	assert.Equal(t, 0.0, *res.DetectedRate)
	assert.Equal(t, 0.0, feed.snap.FundingRate("1d"), "feed snapshot must not be mutated")
	require.NotNil(t, res.Best)
	assert.Equal(t, feed.snap.ID, res.TickID)
}

func TestRunAppliesCommissionButNotSimSpreadToRealFeeds(t *testing.T) {
	feed := rofexFeed(quoted("DLR/ENE26A", 30, 1500, 1505))
	res, err := NewRunner(feed, nil).Run(context.Background(), Params{FundingRate: 0.35, CommissionPct: 0.1, SimSpreadBps: 200})
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.InDelta(t, 1500*(1-0.001), res.Rows[0].Bid, 1e-9)
	assert.InDelta(t, 1505*(1+0.001), res.Rows[0].Ask, 1e-9)
	assert.InDelta(t, 1500, *feed.snap.FuturesChain[0].Bid, 1e-12)
}

func TestRunWidensMockSpread(t *testing.T) {
	feed := mock.NewFeed(rand.New(rand.NewSource(5)))
	res, err := NewRunner(feed, nil).Run(context.Background(), Params{FundingRate: 0.35, SimSpreadBps: 100, AllowSynthetic: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 6)

	for _, r := range res.Rows {
		mid := (r.Bid + r.Ask) / 2
		assert.InDelta(t, mid*0.01, r.Ask-r.Bid, 1e-6)
	}
	assert.Equal(t, models.SourceMock, res.Source)
}

func TestRunMockWithoutSyntheticIsEmpty(t *testing.T) {
	feed := mock.NewFeed(rand.New(rand.NewSource(5)))
	res, err := NewRunner(feed, nil).Run(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Nil(t, res.Best)
}

func TestRunPropagatesFeedErrors(t *testing.T) {
	cfgErr := errors.New("missing credentials")
	feed := &staticFeed{source: models.SourceRofex, err: cfgErr}
	m := metrics.New()

	_, err := NewRunner(feed, nil, WithMetrics(m)).Run(context.Background(), DefaultParams())
	assert.ErrorIs(t, err, cfgErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("rofex", "error")))
}

func TestRunFansOutToSinks(t *testing.T) {
	feed := rofexFeed(quoted("DLR/ENE26A", 30, 1500, 1505))
	sinks := &recordingSinks{changed: true}
	r := NewRunner(feed, arb.NewMonitor("1d"), WithPublisher(sinks), WithBestCache(sinks), WithRecorder(sinks))

	_, err := r.Run(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.Len(t, sinks.published, 1)
	assert.Len(t, sinks.recorded, 1)

	sinks.changed = false
	_, err = r.Run(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.Len(t, sinks.published, 2)
	assert.Len(t, sinks.recorded, 1, "unchanged best is not journaled again")
}

func TestSinkFailuresAreAbsorbed(t *testing.T) {
	feed := rofexFeed(quoted("DLR/ENE26A", 30, 1500, 1505))
	sinks := &recordingSinks{pubErr: errors.New("broker down"), cacheErr: errors.New("redis down")}
	m := metrics.New()
	r := NewRunner(feed, nil, WithMetrics(m), WithPublisher(sinks), WithBestCache(sinks), WithRecorder(sinks))

	res, err := r.Run(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.NotNil(t, res.Best)
	assert.Len(t, sinks.recorded, 1, "cache failure falls back to journaling")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("queue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("cache")))
}

func TestRunSerializesConcurrentTicks(t *testing.T) {
	feed := rofexFeed(quoted("DLR/ENE26A", 30, 1500, 1505))
	r := NewRunner(feed, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Run(context.Background(), DefaultParams())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&feed.maxSeen))
}

func TestApplySimSpreadSkipsMissingLast(t *testing.T) {
	chain := []models.Contract{{Bid: models.Price(1), Ask: models.Price(2)}}
	ApplySimSpread(chain, 100)
	assert.Equal(t, 1.0, *chain[0].Bid)
	assert.Equal(t, 2.0, *chain[0].Ask)
}

func TestFingerprint(t *testing.T) {
	base := Result{Source: models.SourceRofex, FundingRate: 0.35, Best: &arb.Row{Ticker: "DLR/ENE26A", Strategy: arb.StrategyCarry, MaxSpreadBps: 651.7}}
	jitter := base
	jitter.Best = &arb.Row{Ticker: "DLR/ENE26A", Strategy: arb.StrategyCarry, MaxSpreadBps: 651.9}
	otherRate := base
	otherRate.FundingRate = 0.40

	assert.Equal(t, base.Fingerprint(), jitter.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), otherRate.Fingerprint())
	assert.Empty(t, Result{}.Fingerprint())
}
