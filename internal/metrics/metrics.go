// Package metrics exposes Prometheus instruments for the tick cycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	TicksTotal      *prometheus.CounterVec
	TickLatency     prometheus.Histogram
	ContractsRows   *prometheus.GaugeVec
	FilteredTotal   *prometheus.CounterVec
	FeedDiagnostics *prometheus.CounterVec
	SpotPrice       *prometheus.GaugeVec
	BestSpreadBps   *prometheus.GaugeVec
	SinkErrors      *prometheus.CounterVec
}

// New creates and registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TicksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dlrarb_ticks_total",
			Help: "Evaluation cycles by source and outcome (ok, empty, error)",
		}, []string{"source", "outcome"}),
		TickLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dlrarb_tick_duration_seconds",
			Help:    "Wall time of one evaluation cycle including feed calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ContractsRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dlrarb_contracts",
			Help: "Contracts in the last snapshot (chain) and surviving the gates (rows)",
		}, []string{"source", "stage"}),
		FilteredTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dlrarb_filtered_rows_total",
			Help: "Rows removed by each validation gate",
		}, []string{"gate"}),
		FeedDiagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dlrarb_feed_events_total",
			Help: "Fetch failures, dropped records and synthetic quotes reported by feeds",
		}, []string{"source", "kind"}),
		SpotPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dlrarb_spot_price",
			Help: "Resolved USD/ARS spot by resolution method",
		}, []string{"method"}),
		BestSpreadBps: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dlrarb_best_spread_bps",
			Help: "Max spread of the best row in the last tick",
		}, []string{"source", "strategy"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dlrarb_sink_errors_total",
			Help: "Failures writing tick results to cache, queue or journal",
		}, []string{"sink"}),
	}
}

// RecordTick counts a finished cycle.
func (m *Metrics) RecordTick(source, outcome string, seconds float64) {
	m.TicksTotal.WithLabelValues(source, outcome).Inc()
	m.TickLatency.Observe(seconds)
}

// RecordChain sets the chain and row gauges for source.
func (m *Metrics) RecordChain(source string, chain, rows int) {
	m.ContractsRows.WithLabelValues(source, "chain").Set(float64(chain))
	m.ContractsRows.WithLabelValues(source, "rows").Set(float64(rows))
}

// RecordFiltered adds n to the gate counter when n > 0.
func (m *Metrics) RecordFiltered(gate string, n int) {
	if n > 0 {
		m.FilteredTotal.WithLabelValues(gate).Add(float64(n))
	}
}

// RecordDiagnostic adds n feed events of kind.
func (m *Metrics) RecordDiagnostic(source, kind string, n int) {
	if n > 0 {
		m.FeedDiagnostics.WithLabelValues(source, kind).Add(float64(n))
	}
}

// RecordSpot sets the spot gauge for the method that produced it.
func (m *Metrics) RecordSpot(method string, price float64) {
	m.SpotPrice.Reset()
	m.SpotPrice.WithLabelValues(method).Set(price)
}

// RecordBest sets the best-spread gauge for source.
func (m *Metrics) RecordBest(source, strategy string, bps float64) {
	m.BestSpreadBps.DeletePartialMatch(prometheus.Labels{"source": source})
	m.BestSpreadBps.WithLabelValues(source, strategy).Set(bps)
}

// RecordSinkError counts a sink failure.
func (m *Metrics) RecordSinkError(sink string) {
	m.SinkErrors.WithLabelValues(sink).Inc()
}
