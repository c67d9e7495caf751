// Package server exposes tick results over HTTP for the UI and scrapers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/storage/sqlite"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

// TickRunner runs one evaluation cycle.
type TickRunner interface {
	Run(ctx context.Context, p tick.Params) (tick.Result, error)
}

// Journal lists recorded best opportunities.
type Journal interface {
	RecentBest(ctx context.Context, source string, limit int) ([]sqlite.JournalEntry, error)
}

// Server routes /healthz, /api/v1/tick, /api/v1/best and /metrics.
type Server struct {
	runner   TickRunner
	defaults tick.Params
	gatherer prometheus.Gatherer
	journal  Journal
	timeout  time.Duration
}

type Option func(*Server)

// WithJournal enables /api/v1/best.
func WithJournal(j Journal) Option { return func(s *Server) { s.journal = j } }

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

// WithTimeout bounds each tick request.
func WithTimeout(d time.Duration) Option { return func(s *Server) { s.timeout = d } }

func New(runner TickRunner, defaults tick.Params, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		defaults: defaults,
		gatherer: prometheus.DefaultGatherer,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tick", s.handleTick)
		r.Get("/best", s.handleBest)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.timeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("[server] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Infof("[server] shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.runner.Run(ctx, p)
	switch {
	case errors.Is(err, tick.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.Errorf("[server] tick failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseParams starts from the server defaults and applies query overrides.
func (s *Server) parseParams(r *http.Request) (tick.Params, error) {
	q := r.URL.Query()
	p := s.defaults

	floats := []struct {
		key string
		dst *float64
	}{
		{"funding", &p.FundingRate},
		{"commission", &p.CommissionPct},
		{"sim_spread_bps", &p.SimSpreadBps},
	}
	for _, f := range floats {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return tick.Params{}, fmt.Errorf("%s: %q is not a number", f.key, raw)
		}
		*f.dst = v
	}
	if raw := q.Get("synthetic"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return tick.Params{}, fmt.Errorf("synthetic: %q is not a boolean", raw)
		}
		p.AllowSynthetic = v
	}
	return p, p.Validate()
}

type bestView struct {
	TickID       string    `json:"tick_id"`
	Source       string    `json:"source"`
	ObservedAt   time.Time `json:"observed_at"`
	Ticker       string    `json:"ticker"`
	Days         int       `json:"days"`
	Strategy     string    `json:"strategy"`
	MaxSpreadBps float64   `json:"max_spread_bps"`
	FundingRate  float64   `json:"funding_rate"`
	Spot         *float64  `json:"spot"`
	Synthetic    bool      `json:"synthetic"`
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit: %q must be a positive integer", raw))
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	entries, err := s.journal.RecentBest(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		logging.Errorf("[server] journal query: %v", err)
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	out := make([]bestView, 0, len(entries))
	for _, e := range entries {
		v := bestView{
			TickID:       e.TickID,
			Source:       e.Source,
			ObservedAt:   e.ObservedAt,
			Ticker:       e.Ticker,
			Days:         e.Days,
			Strategy:     e.Strategy,
			MaxSpreadBps: e.MaxSpreadBps,
			FundingRate:  e.FundingRate,
			Synthetic:    e.Synthetic,
		}
		if e.Spot.Valid {
			spot := e.Spot.Float64
			v.Spot = &spot
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debugf("[server] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
