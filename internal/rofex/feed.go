package rofex

import (
	"context"
	"fmt"
	"time"

	"github.com/hetulpatel/dlrarb/internal/chain"
	"github.com/hetulpatel/dlrarb/internal/collectors"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/models"
	"github.com/hetulpatel/dlrarb/internal/numparse"
	"github.com/hetulpatel/dlrarb/internal/spot"
)

// DefaultTickerLimit caps how many contracts are queried per tick.
const DefaultTickerLimit = 30

// FeedOptions configures the live feed beyond the client connection.
type FeedOptions struct {
	Filter       chain.TickerFilter
	Limit        int
	Normalizer   *chain.Normalizer
	Reference    spot.ReferenceSource
	FallbackRate float64
	// Fallback is used when synthetic data is allowed and no live contract survives.
	Fallback collectors.Feed
	// FundingRate seeds the "1d" tenor.
	FundingRate float64
}

// DefaultFeedOptions restricts to monthly A-series contracts, 30 tickers.
func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		Filter:       chain.TickerFilter{MonthlyOnly: true, SeriesOnly: true, Series: chain.DefaultSeries},
		Limit:        DefaultTickerLimit,
		FallbackRate: spot.DefaultFallbackRate,
	}
}

// Feed produces snapshots from the live Primary API.
type Feed struct {
	client     *Client
	filter     chain.TickerFilter
	limit      int
	normalizer *chain.Normalizer
	resolver   *spot.Resolver
	fallback   collectors.Feed
	rates      map[string]float64
}

// NewFeed builds the client and feed. Missing credentials return ErrMissingCredentials.
func NewFeed(cfg Config, opts FeedOptions) (*Feed, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewFeedWithClient(client, opts), nil
}

// NewFeedWithClient wires a feed around an existing client.
func NewFeedWithClient(client *Client, opts FeedOptions) *Feed {
	norm := opts.Normalizer
	if norm == nil {
		norm = chain.NewNormalizer()
	}
	return &Feed{
		client:     client,
		filter:     opts.Filter,
		limit:      opts.Limit,
		normalizer: norm,
		resolver:   spot.NewResolver(opts.Reference, opts.FallbackRate),
		fallback:   opts.Fallback,
		rates:      map[string]float64{models.DefaultFundingTenor: opts.FundingRate},
	}
}

func (f *Feed) Name() string {
	return string(models.SourceRofex)
}

// Client exposes the underlying API client (session reset, debugging).
func (f *Feed) Client() *Client {
	return f.client
}

// Tickers authenticates if needed and returns the filtered, sorted, limited symbol list.
func (f *Feed) Tickers(ctx context.Context) ([]string, error) {
	symbols, err := f.client.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	return f.filter.Select(symbols, f.limit), nil
}

// Snapshot queries every selected ticker. Per-ticker failures are logged and omitted.
// When nothing survives, the synthetic fallback is used if allowed; otherwise the
// snapshot is empty.
func (f *Feed) Snapshot(ctx context.Context, allowSynthetic bool) (models.MarketSnapshot, error) {
	snap := models.NewSnapshot(models.SourceRofex, time.Now().UTC(), copyRates(f.rates), nil)

	tickers, err := f.Tickers(ctx)
	if err != nil {
		logging.Warnf("[rofex] instruments unavailable: %v", err)
		snap.Diagnostics.FetchFailures++
		return f.emptyOrFallback(ctx, snap, allowSynthetic)
	}
	if len(tickers) == 0 {
		logging.Warnf("[rofex] no DLR tickers matched the filter")
		return f.emptyOrFallback(ctx, snap, allowSynthetic)
	}

	contracts := make([]models.Contract, 0, len(tickers))
	for _, ticker := range tickers {
		md, err := f.client.MarketData(ctx, ticker)
		if err != nil {
			logging.Warnf("[rofex] skip %s: %v", ticker, err)
			snap.Diagnostics.FetchFailures++
			continue
		}
		c, err := f.contract(md)
		if err != nil {
			logging.Debugf("[rofex] drop %s: %v", ticker, err)
			snap.Diagnostics.DroppedRecords++
			continue
		}
		if c.Synthetic {
			logging.Infof("[rofex] %s quote filled from %s: bid=%.2f ask=%.2f", c.Ticker, c.FallbackRef, models.Value(c.Bid), models.Value(c.Ask))
		}
		contracts = append(contracts, c)
	}
	if len(contracts) == 0 {
		return f.emptyOrFallback(ctx, snap, allowSynthetic)
	}

	chain.SortByDays(contracts)
	snap = snap.WithChain(contracts)
	snap.Diagnostics.SyntheticQuotes = chain.CountSynthetic(contracts)

	res := f.resolver.Resolve(ctx, contracts)
	snap.Spot = res.Ptr()
	snap.SpotMethod = res.Method
	logging.Infof("[rofex] %d/%d contracts, spot=%.2f (%s)", len(contracts), len(tickers), res.Price, res.Method)
	return snap, nil
}

func (f *Feed) contract(md MarketData) (models.Contract, error) {
	year, month, err := chain.ParseAPITicker(md.Symbol)
	if err != nil {
		return models.Contract{}, err
	}
	c := models.Contract{
		Ticker:       md.Symbol,
		Bid:          md.Bid.Price.Ptr(),
		BidSize:      present(md.Bid.Size),
		Ask:          md.Offer.Price.Ptr(),
		AskSize:      present(md.Offer.Size),
		Last:         md.Last.Price.Ptr(),
		LastSize:     present(md.Last.Size),
		Opening:      md.Opening.Price.Ptr(),
		Closing:      md.Closing.Price.Ptr(),
		Settlement:   md.Settlement.Price.Ptr(),
		Volume:       present(md.Volume.Price),
		OpenInterest: present(md.OpenInterest.Price),
	}
	if !f.normalizer.Finalize(&c, year, month) {
		return models.Contract{}, fmt.Errorf("expired (%d days)", c.Days)
	}
	return c, nil
}

func (f *Feed) emptyOrFallback(ctx context.Context, snap models.MarketSnapshot, allowSynthetic bool) (models.MarketSnapshot, error) {
	if !allowSynthetic || f.fallback == nil {
		return snap, nil
	}
	logging.Warnf("[rofex] no live contracts, using %s fallback", f.fallback.Name())
	return f.fallback.Snapshot(ctx, true)
}

// present keeps parsed statistics even when zero (volume, open interest).
func present(n numparse.Number) *float64 {
	if !n.Parsed {
		return nil
	}
	return models.Price(n.Value)
}

func copyRates(rates map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rates))
	for k, v := range rates {
		out[k] = v
	}
	return out
}
