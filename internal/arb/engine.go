package arb

import (
	"math"
	"sort"
	"time"

	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/models"
)

// Strategy names the side of the carry trade a row favors.
type Strategy string

const (
	StrategyCarry   Strategy = "Carry (Sell Futures)"
	StrategyReverse Strategy = "Reverse (Buy Futures)"
)

const (
	// MaxDays caps the term structure considered (two years).
	MaxDays = 730
	// DaysPerYear is the simple annualization base.
	DaysPerYear = 365.0
	bpsPerUnit  = 10000.0
)

// Row is one annotated contract of the output table.
type Row struct {
	Ticker           string    `json:"Ticker"`
	Maturity         time.Time `json:"Maturity"`
	Days             int       `json:"Days"`
	Bid              float64   `json:"Bid"`
	Ask              float64   `json:"Ask"`
	Strategy         Strategy  `json:"Strategy"`
	MaxSpreadBps     float64   `json:"Max_Spread_bps"`
	ImpliedTNABid    float64   `json:"Implied_TNA_Bid"`
	ImpliedTNAAsk    float64   `json:"Implied_TNA_Ask"`
	ImpliedSpot      float64   `json:"Implied_Spot"`
	FundingCostTNA   float64   `json:"Funding_Cost_TNA"`
	ClassicSpreadBps float64   `json:"Classic_Spread_bps"`
	ReverseSpreadBps float64   `json:"Reverse_Spread_bps"`
	Synthetic        bool      `json:"Synthetic"`
}

// FilterCounts records how many rows each validation gate removed.
type FilterCounts struct {
	InvalidDays   int  `json:"invalid_days"`
	MissingQuotes int  `json:"missing_quotes"`
	InvertedQuote int  `json:"inverted_quote"`
	MissingSpot   bool `json:"missing_spot"`
}

// Report is the monitor output for one tick.
type Report struct {
	Rows     []Row        `json:"rows"`
	Filtered FilterCounts `json:"filtered"`
}

// Monitor validates a snapshot and computes implied rates and spreads against the funding
// rate stored under Tenor.
type Monitor struct {
	Tenor string
}

// NewMonitor returns a monitor reading the given funding tenor.
func NewMonitor(tenor string) *Monitor {
	if tenor == "" {
		tenor = models.DefaultFundingTenor
	}
	return &Monitor{Tenor: tenor}
}

// ProcessTick is a pure function of the snapshot: gates run in order (days window, spot,
// bid/ask) and an empty report is returned whenever a gate empties the chain.
func (m *Monitor) ProcessTick(snap models.MarketSnapshot) Report {
	var rep Report
	if snap.IsEmpty() {
		return rep
	}

	rows := make([]models.Contract, 0, len(snap.FuturesChain))
	for _, c := range snap.FuturesChain {
		if c.Days <= 0 || c.Days > MaxDays {
			rep.Filtered.InvalidDays++
			continue
		}
		rows = append(rows, c)
	}
	if rep.Filtered.InvalidDays > 0 {
		logging.Warnf("[arb] filtered %d contracts with invalid days (<=0 or >%d)", rep.Filtered.InvalidDays, MaxDays)
	}
	if len(rows) == 0 {
		return rep
	}

	if !snap.HasSpot() {
		logging.Errorf("[arb] invalid spot price (must be > 0)")
		rep.Filtered.MissingSpot = true
		return rep
	}
	spot := *snap.Spot

	valid := rows[:0]
	for _, c := range rows {
		switch {
		case c.Bid == nil || c.Ask == nil:
			rep.Filtered.MissingQuotes++
		case *c.Bid >= *c.Ask:
			rep.Filtered.InvertedQuote++
		default:
			valid = append(valid, c)
		}
	}
	if rep.Filtered.MissingQuotes > 0 {
		logging.Warnf("[arb] filtered %d contracts without a two-sided quote", rep.Filtered.MissingQuotes)
	}
	if rep.Filtered.InvertedQuote > 0 {
		logging.Warnf("[arb] filtered %d contracts with bid >= ask", rep.Filtered.InvertedQuote)
	}
	if len(valid) == 0 {
		return rep
	}

	funding := snap.FundingRate(m.Tenor)
	rep.Rows = make([]Row, 0, len(valid))
	for _, c := range valid {
		rep.Rows = append(rep.Rows, Evaluate(c, spot, funding))
	}
	return rep
}

// Table returns only the annotated rows of ProcessTick.
func (m *Monitor) Table(snap models.MarketSnapshot) []Row {
	return m.ProcessTick(snap).Rows
}

// Evaluate computes the spread columns for a single validated contract.
func Evaluate(c models.Contract, spot, funding float64) Row {
	days := float64(c.Days)
	bid, ask := *c.Bid, *c.Ask

	row := Row{
		Ticker:         c.Ticker,
		Maturity:       c.Maturity,
		Days:           c.Days,
		Bid:            bid,
		Ask:            ask,
		ImpliedTNABid:  ImpliedRate(bid, spot, c.Days),
		ImpliedTNAAsk:  ImpliedRate(ask, spot, c.Days),
		ImpliedSpot:    bid / (1 + funding*days/DaysPerYear),
		FundingCostTNA: funding,
		Synthetic:      c.Synthetic,
	}
	row.ClassicSpreadBps = (row.ImpliedTNABid - funding) * bpsPerUnit
	row.ReverseSpreadBps = (funding - row.ImpliedTNAAsk) * bpsPerUnit
	row.MaxSpreadBps = math.Max(row.ClassicSpreadBps, row.ReverseSpreadBps)
	if row.ClassicSpreadBps >= row.ReverseSpreadBps {
		row.Strategy = StrategyCarry
	} else {
		row.Strategy = StrategyReverse
	}
	return row
}

// ImpliedRate is the simple annualized devaluation embedded in price relative to spot.
func ImpliedRate(price, spot float64, days int) float64 {
	return (price/spot - 1) * (DaysPerYear / float64(days))
}

// Best returns the row with the largest MaxSpreadBps; ties keep the first row seen.
func Best(rows []Row) (Row, bool) {
	if len(rows) == 0 {
		return Row{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.MaxSpreadBps > best.MaxSpreadBps {
			best = r
		}
	}
	return best, true
}

// SortByDays returns a copy of rows ordered by days to expiry for display.
func SortByDays(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Days < out[j].Days
	})
	return out
}
