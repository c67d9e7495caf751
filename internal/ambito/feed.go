package ambito

import (
	"context"
	"time"

	"github.com/hetulpatel/dlrarb/internal/chain"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/models"
	"github.com/hetulpatel/dlrarb/internal/spot"
)

// DefaultFundingRate seeds the "1d" tenor; operators normally override it per tick.
const DefaultFundingRate = 0.35

// Feed scrapes the Ámbito listing into a MarketSnapshot. It never synthesizes data.
type Feed struct {
	Client     *Client
	Normalizer *chain.Normalizer
	Resolver   *spot.Resolver
	Rates      map[string]float64
}

// NewFeed wires a feed whose spot reference is the client's wholesale quote.
func NewFeed(client *Client, norm *chain.Normalizer, fallbackRate float64) *Feed {
	if norm == nil {
		norm = chain.NewNormalizer()
	}
	return &Feed{
		Client:     client,
		Normalizer: norm,
		Resolver:   spot.NewResolver(client, fallbackRate),
		Rates:      map[string]float64{models.DefaultFundingTenor: DefaultFundingRate},
	}
}

func (f *Feed) Name() string {
	return string(models.SourceAmbito)
}

// Snapshot fetches and normalizes the listing. allowSynthetic is ignored. An unreachable
// upstream yields an empty snapshot, never an error.
func (f *Feed) Snapshot(ctx context.Context, _ bool) (models.MarketSnapshot, error) {
	snap := models.NewSnapshot(models.SourceAmbito, time.Now().UTC(), copyRates(f.Rates), nil)

	rows, err := f.Client.Futures(ctx)
	if err != nil {
		logging.Warnf("[ambito] futures unavailable: %v", err)
		snap.Diagnostics.FetchFailures++
		return snap, nil
	}

	contracts := make([]models.Contract, 0, len(rows))
	for _, row := range rows {
		c, ok := f.contract(row)
		if !ok {
			snap.Diagnostics.DroppedRecords++
			continue
		}
		contracts = append(contracts, c)
	}
	if snap.Diagnostics.DroppedRecords > 0 {
		logging.Debugf("[ambito] dropped %d listing rows", snap.Diagnostics.DroppedRecords)
	}
	if len(contracts) == 0 {
		logging.Warnf("[ambito] listing produced no usable contracts (%d rows)", len(rows))
		return snap, nil
	}

	chain.SortByDays(contracts)
	snap = snap.WithChain(contracts)
	snap.Diagnostics.SyntheticQuotes = chain.CountSynthetic(contracts)

	res := f.Resolver.Resolve(ctx, contracts)
	snap.Spot = res.Ptr()
	snap.SpotMethod = res.Method
	return snap, nil
}

func (f *Feed) contract(row Row) (models.Contract, bool) {
	year, month, err := chain.ParseMaturityText(row.Name)
	if err != nil {
		logging.Debugf("[ambito] skip %q: %v", row.Name, err)
		return models.Contract{}, false
	}
	c := models.Contract{
		Last:    row.Last.Ptr(),
		Closing: row.Closing.Ptr(),
		Bid:     row.Bid.Ptr(),
		Ask:     row.Ask.Ptr(),
	}
	if !f.Normalizer.Finalize(&c, year, month) {
		return models.Contract{}, false
	}
	if c.Bid == nil && c.Ask == nil {
		return models.Contract{}, false
	}
	c.Ticker = chain.SyntheticTicker(c.Maturity)
	return c, true
}

func copyRates(rates map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rates))
	for k, v := range rates {
		out[k] = v
	}
	return out
}
