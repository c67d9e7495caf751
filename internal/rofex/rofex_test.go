package rofex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/dlrarb/internal/chain"
	"github.com/hetulpatel/dlrarb/internal/collectors"
	"github.com/hetulpatel/dlrarb/internal/models"
)

var testCreds = Credentials{Username: "user", Password: "pass", Account: "REM123"}

type fakePrimary struct {
	authCalls   int
	authStatus  int
	marketCalls map[string]int
	entries     map[string]string
	symbols     []string
	failing     map[string]bool
}

func newFakePrimary() *fakePrimary {
	return &fakePrimary{
		marketCalls: map[string]int{},
		entries: map[string]string{
			"DLR/ENE26A": `{"status":"OK","marketData":{"BI":[{"price":1500,"size":10}],"OF":[{"price":1505,"size":5}],"LA":{"price":1502,"size":1,"date":1733000000000},"SE":1498,"TV":1200,"OI":{"price":35000}}}`,
			"DLR/FEB26A": `{"status":"OK","marketData":{"BI":[],"OF":[],"LA":null,"SE":{"price":1550.0,"size":null},"CL":1548}}`,
			"DLR/MAR26A": `{"status":"ERROR","description":"instrument not tradable"}`,
			"DLR/NOV25A": `{"status":"OK","marketData":{"BI":[{"price":1400,"size":1}],"OF":[{"price":1401,"size":1}]}}`,
		},
	}
}

func (p *fakePrimary) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/getToken", func(w http.ResponseWriter, r *http.Request) {
		p.authCalls++
		if p.authStatus != 0 {
			w.WriteHeader(p.authStatus)
			return
		}
		if r.Method != http.MethodPost || r.Header.Get("X-Username") != "user" || r.Header.Get("X-Password") != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Auth-Token", "tok-1")
	})
	mux.HandleFunc("/rest/instruments/all", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		type id struct {
			MarketID string `json:"marketId"`
			Symbol   string `json:"symbol"`
		}
		type inst struct {
			InstrumentID id `json:"instrumentId"`
		}
		symbols := p.symbols
		if symbols == nil {
			symbols = []string{"DLR/FEB26A", "DLR/ENE26A", "DLR/ENE26", "DLR/ENE26/FEB26", "DLR/NOV25A", "DLR/MAR26A", "GGAL/ENE26"}
		}
		var list []inst
		for _, s := range symbols {
			list = append(list, inst{InstrumentID: id{MarketID: MarketID, Symbol: s}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "OK", "instruments": list})
	})
	mux.HandleFunc("/rest/marketdata/get", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("marketId") != MarketID || q.Get("depth") != "1" || q.Get("entries") != "BI,OF,LA,OP,CL,SE,TV,OI" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		sym := q.Get("symbol")
		p.marketCalls[sym]++
		if p.failing[sym] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, ok := p.entries[sym]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type stubReference struct{ price float64 }

func (s stubReference) WholesaleSpot(context.Context) (float64, error) {
	if s.price <= 0 {
		return 0, errors.New("down")
	}
	return s.price, nil
}

type stubFeed struct {
	calls int
}

func (s *stubFeed) Name() string { return "mock" }

func (s *stubFeed) Snapshot(_ context.Context, allow bool) (models.MarketSnapshot, error) {
	s.calls++
	c := models.Contract{Ticker: "DLR/MOCK1", Days: 30, Bid: models.Price(1), Ask: models.Price(2)}
	return models.NewSnapshot(models.SourceMock, time.Now(), nil, []models.Contract{c}), nil
}

func testFeed(t *testing.T, srv *httptest.Server, ref float64, fallback *stubFeed) *Feed {
	t.Helper()
	norm := chain.NewNormalizer()
	norm.Now = func() time.Time { return time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC) }

	opts := DefaultFeedOptions()
	opts.Normalizer = norm
	opts.Reference = stubReference{price: ref}
	if fallback != nil {
		opts.Fallback = fallback
	}
	feed, err := NewFeed(Config{Credentials: testCreds, BaseURL: srv.URL}, opts)
	require.NoError(t, err)
	return feed
}

func TestNewFeedRequiresCredentials(t *testing.T) {
	_, err := NewFeed(Config{Credentials: Credentials{Username: "u", Password: "p"}}, DefaultFeedOptions())
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, EnvRemarket, env)
	assert.Equal(t, "https://api.remarkets.primary.com.ar/", env.BaseURL())

	env, err = ParseEnvironment("LIVE")
	require.NoError(t, err)
	assert.Equal(t, "https://api.primary.com.ar/", env.BaseURL())

	_, err = ParseEnvironment("staging")
	assert.Error(t, err)
}

func TestTickersFiltersSeriesA(t *testing.T) {
	p := newFakePrimary()
	feed := testFeed(t, p.server(t), 1450.5, nil)

	tickers, err := feed.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DLR/ENE26A", "DLR/FEB26A", "DLR/MAR26A", "DLR/NOV25A"}, tickers)
}

func TestSnapshotBuildsChain(t *testing.T) {
	p := newFakePrimary()
	feed := testFeed(t, p.server(t), 1450.5, nil)

	snap, err := feed.Snapshot(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, snap.FuturesChain, 2)
	assert.Equal(t, 1, snap.Diagnostics.FetchFailures)
	assert.Equal(t, 1, snap.Diagnostics.DroppedRecords)
	assert.Equal(t, 1, snap.Diagnostics.SyntheticQuotes)

	jan := snap.FuturesChain[0]
	assert.Equal(t, "DLR/ENE26A", jan.Ticker)
	assert.Equal(t, 60, jan.Days)
	assert.InDelta(t, 1500, *jan.Bid, 1e-9)
	assert.InDelta(t, 1505, *jan.Ask, 1e-9)
	assert.InDelta(t, 10, *jan.BidSize, 1e-9)
	assert.InDelta(t, 1502, *jan.Last, 1e-9)
	assert.InDelta(t, 1498, *jan.Settlement, 1e-9)
	assert.InDelta(t, 35000, *jan.OpenInterest, 1e-9)
	assert.False(t, jan.Synthetic)

	feb := snap.FuturesChain[1]
	assert.Equal(t, "DLR/FEB26A", feb.Ticker)
	assert.Equal(t, time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), feb.Maturity)
	assert.Equal(t, 88, feb.Days)
	assert.True(t, feb.Synthetic)
	assert.Equal(t, "settlement", feb.FallbackRef)
	assert.InDelta(t, 1549.845, *feb.Bid, 1e-9)
	assert.InDelta(t, 1550.155, *feb.Ask, 1e-9)

	assert.Equal(t, models.SpotReference, snap.SpotMethod)
	assert.InDelta(t, 1450.5, *snap.Spot, 1e-9)
	assert.InDelta(t, 0, snap.FundingRate(models.DefaultFundingTenor), 1e-12)
}

func TestAuthenticationIsMemoizedUntilReset(t *testing.T) {
	p := newFakePrimary()
	feed := testFeed(t, p.server(t), 1450.5, nil)
	ctx := context.Background()

	_, err := feed.Snapshot(ctx, false)
	require.NoError(t, err)
	_, err = feed.Snapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.authCalls)
	assert.True(t, feed.Client().Authenticated())

	feed.Client().Reset()
	assert.False(t, feed.Client().Authenticated())
	_, err = feed.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.authCalls)
}

func TestSpotFallsBackToNearestFuture(t *testing.T) {
	p := newFakePrimary()
	feed := testFeed(t, p.server(t), 0, nil)

	snap, err := feed.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, models.SpotNearestFuture, snap.SpotMethod)
	assert.InDelta(t, 1498/(1+0.35*60.0/365), *snap.Spot, 1e-9)
}

func TestAuthFailureWithoutSyntheticIsEmpty(t *testing.T) {
	p := newFakePrimary()
	p.authStatus = http.StatusUnauthorized
	fallback := &stubFeed{}
	feed := testFeed(t, p.server(t), 1450.5, fallback)

	snap, err := feed.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	assert.Equal(t, 1, snap.Diagnostics.FetchFailures)
	assert.Equal(t, 0, fallback.calls)
}

func TestAuthFailureWithSyntheticUsesFallback(t *testing.T) {
	p := newFakePrimary()
	p.authStatus = http.StatusUnauthorized
	fallback := &stubFeed{}
	feed := testFeed(t, p.server(t), 1450.5, fallback)

	snap, err := feed.Snapshot(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, models.SourceMock, snap.Source)
	assert.Len(t, snap.FuturesChain, 1)
}

func runTick(t *testing.T, feed *Feed) models.MarketSnapshot {
	t.Helper()
	var snap models.MarketSnapshot
	err := collectors.RunTick(context.Background(), feed, false, func(_ context.Context, s models.MarketSnapshot) error {
		snap = s
		return nil
	})
	require.NoError(t, err)
	return snap
}

func TestFailingTickersDoNotBlockTheBatch(t *testing.T) {
	p := newFakePrimary()
	p.symbols = []string{"DLR/ABR27A", "DLR/ENE27A", "DLR/FEB27A", "DLR/MAR27A", "DLR/MAY27A"}
	p.failing = map[string]bool{"DLR/ABR27A": true, "DLR/ENE27A": true, "DLR/FEB27A": true}
	for _, sym := range p.symbols {
		p.entries[sym] = `{"status":"OK","marketData":{"BI":[{"price":1800,"size":1}],"OF":[{"price":1810,"size":1}]}}`
	}
	feed := testFeed(t, p.server(t), 1450.5, nil)

	snap := runTick(t, feed)
	assert.Equal(t, 3, snap.Diagnostics.FetchFailures)
	require.Len(t, snap.FuturesChain, 2)
	assert.Equal(t, "DLR/MAR27A", snap.FuturesChain[0].Ticker)
	assert.Equal(t, "DLR/MAY27A", snap.FuturesChain[1].Ticker)

	p.failing = nil
	snap = runTick(t, feed)
	assert.Equal(t, 0, snap.Diagnostics.FetchFailures)
	assert.Len(t, snap.FuturesChain, 5)
}

func TestRecoveredAuthServesNextTick(t *testing.T) {
	p := newFakePrimary()
	p.authStatus = http.StatusServiceUnavailable
	feed := testFeed(t, p.server(t), 1450.5, nil)

	for i := 0; i < 4; i++ {
		assert.True(t, runTick(t, feed).IsEmpty())
	}

	assert.Equal(t, 4, p.authCalls)

	p.authStatus = 0
	snap := runTick(t, feed)
	assert.Equal(t, 5, p.authCalls)
	assert.Len(t, snap.FuturesChain, 2)
}

func TestEntryShapes(t *testing.T) {
	q := entry([]any{map[string]any{"price": 10.5, "size": 3.0}})
	assert.InDelta(t, 10.5, q.Price.Value, 1e-12)
	assert.InDelta(t, 3, q.Size.Value, 1e-12)

	q = entry(12.0)
	assert.True(t, q.Price.Parsed)
	assert.False(t, q.Size.Parsed)

	q = entry([]any{})
	assert.False(t, q.Price.Parsed)

	q = entry(nil)
	assert.Nil(t, q.Price.Ptr())
}
