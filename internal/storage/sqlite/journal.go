package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hetulpatel/dlrarb/internal/tick"
)

// JournalEntry is one stored best-opportunity row.
type JournalEntry struct {
	ID           int64
	TickID       string
	Source       string
	ObservedAt   time.Time
	Ticker       string
	Days         int
	Strategy     string
	MaxSpreadBps float64
	FundingRate  float64
	Spot         sql.NullFloat64
	Synthetic    bool
	Fingerprint  string
}

// RecordBest stores the best row of a tick. Ticks without a best row are ignored.
func (s *Store) RecordBest(ctx context.Context, res tick.Result) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	best := res.Best
	if best == nil {
		return nil
	}

	rowJSON, err := json.Marshal(best)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}

	query := `
INSERT INTO best_opportunities (
	tick_id, source, observed_at, recorded_at,
	spot, spot_method, funding_rate, detected_rate, commission_pct, sim_spread_bps,
	ticker, maturity, days, bid, ask, strategy,
	max_spread_bps, implied_tna_bid, implied_tna_ask, classic_spread_bps, reverse_spread_bps,
	synthetic, rows_count, fingerprint, row_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err = s.db.ExecContext(
		ctx,
		query,
		res.TickID,
		string(res.Source),
		formatTime(res.Timestamp),
		formatTime(time.Now()),
		nullable(res.Spot),
		string(res.SpotMethod),
		res.FundingRate,
		nullable(res.DetectedRate),
		res.Params.CommissionPct,
		res.Params.SimSpreadBps,
		best.Ticker,
		formatTime(best.Maturity),
		best.Days,
		best.Bid,
		best.Ask,
		string(best.Strategy),
		best.MaxSpreadBps,
		best.ImpliedTNABid,
		best.ImpliedTNAAsk,
		best.ClassicSpreadBps,
		best.ReverseSpreadBps,
		best.Synthetic,
		len(res.Rows),
		res.Fingerprint(),
		string(rowJSON),
	)
	return err
}

// RecentBest lists the newest journal entries, optionally for one source.
func (s *Store) RecentBest(ctx context.Context, source string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT id, tick_id, source, observed_at, ticker, days, strategy, max_spread_bps,
	funding_rate, spot, synthetic, fingerprint
FROM best_opportunities
WHERE (? = '' OR source = ?)
ORDER BY id DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, query, source, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e        JournalEntry
			observed string
		)
		if err := rows.Scan(&e.ID, &e.TickID, &e.Source, &observed, &e.Ticker, &e.Days, &e.Strategy,
			&e.MaxSpreadBps, &e.FundingRate, &e.Spot, &e.Synthetic, &e.Fingerprint); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, observed); err == nil {
			e.ObservedAt = ts
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
