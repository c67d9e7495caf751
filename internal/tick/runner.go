// Package tick runs one evaluation cycle: feed call, operator adjustments, monitor, and
// fan-out to the optional sinks.
package tick

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hetulpatel/dlrarb/internal/arb"
	"github.com/hetulpatel/dlrarb/internal/collectors"
	"github.com/hetulpatel/dlrarb/internal/hashutil"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/metrics"
	"github.com/hetulpatel/dlrarb/internal/models"
)

// Result is everything a caller needs to render or forward a tick.
type Result struct {
	TickID       string             `json:"tick_id"`
	Source       models.Source      `json:"source"`
	Timestamp    time.Time          `json:"timestamp"`
	Spot         *float64           `json:"spot"`
	SpotMethod   models.SpotMethod  `json:"spot_method"`
	FundingRate  float64            `json:"funding_rate"`
	DetectedRate *float64           `json:"detected_rate"`
	Params       Params             `json:"params"`
	Best         *arb.Row           `json:"best"`
	Rows         []arb.Row          `json:"rows"`
	Filtered     arb.FilterCounts   `json:"filtered"`
	Diagnostics  models.Diagnostics `json:"diagnostics"`
	ChainSize    int                `json:"chain_size"`
	Duration     time.Duration      `json:"duration_ns"`
}

// Empty reports whether no row survived the gates.
func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// Fingerprint identifies the best row by source, ticker, strategy, whole-bps spread and
// funding rate. Empty when there is no best row.
func (r Result) Fingerprint() string {
	if r.Best == nil {
		return ""
	}
	return hashutil.HashStrings(
		string(r.Source),
		r.Best.Ticker,
		string(r.Best.Strategy),
		fmt.Sprintf("%.0f", r.Best.MaxSpreadBps),
		fmt.Sprintf("%.4f", r.FundingRate),
	)
}

// Publisher forwards results to downstream consumers.
type Publisher interface {
	PublishTick(ctx context.Context, res Result) error
}

// BestCache remembers the best row per source; Observe reports whether res changed it.
type BestCache interface {
	Observe(ctx context.Context, res Result) (bool, error)
}

// Recorder journals best-opportunity changes.
type Recorder interface {
	RecordBest(ctx context.Context, res Result) error
}

// Runner serializes ticks against one feed.
type Runner struct {
	feed      collectors.Feed
	monitor   *arb.Monitor
	metrics   *metrics.Metrics
	publisher Publisher
	cache     BestCache
	recorder  Recorder

	mu sync.Mutex
}

// Option configures optional runner collaborators.
type Option func(*Runner)

func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }
func WithPublisher(p Publisher) Option     { return func(r *Runner) { r.publisher = p } }
func WithBestCache(c BestCache) Option     { return func(r *Runner) { r.cache = c } }
func WithRecorder(rec Recorder) Option     { return func(r *Runner) { r.recorder = rec } }

// NewRunner wires a runner; a nil monitor reads the default funding tenor.
func NewRunner(feed collectors.Feed, monitor *arb.Monitor, opts ...Option) *Runner {
	if monitor == nil {
		monitor = arb.NewMonitor(models.DefaultFundingTenor)
	}
	r := &Runner{feed: feed, monitor: monitor}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feed returns the runner's feed.
func (r *Runner) Feed() collectors.Feed {
	return r.feed
}

// Run executes one cycle. Invalid params and feed configuration errors are returned;
// everything else degrades to an empty result. Concurrent calls run one at a time.
func (r *Runner) Run(ctx context.Context, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	var res Result
	err := collectors.RunTick(ctx, r.feed, p.AllowSynthetic, func(_ context.Context, snap models.MarketSnapshot) error {
		res = r.evaluate(snap, p)
		return nil
	})
	res.Duration = time.Since(start)
	if err != nil {
		r.recordTick("error", res)
		return Result{}, err
	}

	outcome := "ok"
	if res.Empty() {
		outcome = "empty"
	}
	r.recordTick(outcome, res)
	r.fanOut(ctx, res)

	if res.Best != nil {
		logging.Infof("[tick] %s %s: %d rows, best %s %.0f bps (%s)", res.Source, res.TickID, len(res.Rows), res.Best.Ticker, res.Best.MaxSpreadBps, res.Best.Strategy)
	} else {
		logging.Infof("[tick] %s %s: no rows (chain=%d)", res.Source, res.TickID, res.ChainSize)
	}
	return res, nil
}

func (r *Runner) evaluate(snap models.MarketSnapshot, p Params) Result {
	chain := snap.CloneChain()
	if snap.Source == models.SourceMock {
		ApplySimSpread(chain, p.SimSpreadBps)
	}
	ApplyCommission(chain, p.CommissionPct)

	var detected *float64
	if v, ok := snap.FundingRates[r.monitor.Tenor]; ok {
		detected = models.Price(v)
	}
	adjusted := snap.WithChain(chain).WithFundingRate(r.monitor.Tenor, p.FundingRate)

	rep := r.monitor.ProcessTick(adjusted)
	rows := arb.SortByDays(rep.Rows)

	res := Result{
		TickID:       snap.ID,
		Source:       snap.Source,
		Timestamp:    snap.Timestamp,
		Spot:         snap.Spot,
		SpotMethod:   snap.SpotMethod,
		FundingRate:  p.FundingRate,
		DetectedRate: detected,
		Params:       p,
		Rows:         rows,
		Filtered:     rep.Filtered,
		Diagnostics:  snap.Diagnostics,
		ChainSize:    len(chain),
	}
	// Best is chosen in feed order so ties resolve to the first row the feed produced.
	if best, ok := arb.Best(rep.Rows); ok {
		res.Best = &best
	}
	return res
}

// ApplySimSpread rebuilds bid/ask as last·(1∓h) with h = bps/20000. Rows without a
// positive last are left untouched.
func ApplySimSpread(chain []models.Contract, bps float64) {
	if bps <= 0 {
		return
	}
	h := bps / 10000 / 2
	for i := range chain {
		c := &chain[i]
		if !models.Positive(c.Last) {
			continue
		}
		c.Bid = models.Price(*c.Last * (1 - h))
		c.Ask = models.Price(*c.Last * (1 + h))
	}
}

// ApplyCommission charges fee = pct/100 on both sides: bid·(1−fee), ask·(1+fee).
func ApplyCommission(chain []models.Contract, pct float64) {
	if pct <= 0 {
		return
	}
	fee := pct / 100
	for i := range chain {
		c := &chain[i]
		if c.Bid != nil {
			c.Bid = models.Price(*c.Bid * (1 - fee))
		}
		if c.Ask != nil {
			c.Ask = models.Price(*c.Ask * (1 + fee))
		}
	}
}

func (r *Runner) recordTick(outcome string, res Result) {
	if r.metrics == nil {
		return
	}
	source := r.feed.Name()
	r.metrics.RecordTick(source, outcome, res.Duration.Seconds())
	if outcome == "error" {
		return
	}
	r.metrics.RecordChain(source, res.ChainSize, len(res.Rows))
	r.metrics.RecordFiltered("invalid_days", res.Filtered.InvalidDays)
	r.metrics.RecordFiltered("missing_quotes", res.Filtered.MissingQuotes)
	r.metrics.RecordFiltered("inverted_quote", res.Filtered.InvertedQuote)
	if res.Filtered.MissingSpot {
		r.metrics.RecordFiltered("missing_spot", 1)
	}
	r.metrics.RecordDiagnostic(source, "fetch_failure", res.Diagnostics.FetchFailures)
	r.metrics.RecordDiagnostic(source, "dropped_record", res.Diagnostics.DroppedRecords)
	r.metrics.RecordDiagnostic(source, "synthetic_quote", res.Diagnostics.SyntheticQuotes)
	if res.Spot != nil {
		r.metrics.RecordSpot(string(res.SpotMethod), *res.Spot)
	}
	if res.Best != nil {
		r.metrics.RecordBest(source, string(res.Best.Strategy), res.Best.MaxSpreadBps)
	}
}

// fanOut delivers res to the sinks. Failures are logged and counted, never returned.
func (r *Runner) fanOut(ctx context.Context, res Result) {
	if r.publisher != nil {
		if err := r.publisher.PublishTick(ctx, res); err != nil {
			r.sinkError("queue", err)
		}
	}
	if res.Best == nil {
		return
	}
	changed := true
	if r.cache != nil {
		var err error
		changed, err = r.cache.Observe(ctx, res)
		if err != nil {
			r.sinkError("cache", err)
			changed = true
		}
	}
	if changed && r.recorder != nil {
		if err := r.recorder.RecordBest(ctx, res); err != nil {
			r.sinkError("journal", err)
		}
	}
}

func (r *Runner) sinkError(sink string, err error) {
	logging.Warnf("[tick] %s sink: %v", sink, err)
	if r.metrics != nil {
		r.metrics.RecordSinkError(sink)
	}
}
