// Package breakers builds the circuit breakers wrapped around upstream market-data calls.
//
// Breakers live in a Scope that is created for one tick and dropped with it, so an
// upstream that failed during one tick is tried again on the next.
package breakers

import (
	"context"
	"sync"
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/hetulpatel/dlrarb/internal/logging"
)

// Settings tunes a breaker; zero values take the defaults below.
type Settings struct {
	ConsecutiveFailures uint32
	Interval            time.Duration
	Timeout             time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	if s.Interval == 0 {
		s.Interval = 60 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	return s
}

// New returns a breaker that opens after consecutive failures or a sustained error ratio.
func New(name string, s Settings) *cb.CircuitBreaker {
	s = s.withDefaults()
	st := cb.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.Timeout,
	}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= s.ConsecutiveFailures {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		logging.Warnf("[breaker] %s: %s -> %s", name, from, to)
	}
	return cb.NewCircuitBreaker(st)
}

// Scope holds one breaker per endpoint name for the duration of a single tick.
type Scope struct {
	settings Settings

	mu     sync.Mutex
	byName map[string]*cb.CircuitBreaker
}

func NewScope(s Settings) *Scope {
	return &Scope{settings: s, byName: map[string]*cb.CircuitBreaker{}}
}

// Breaker returns the endpoint's breaker, creating it on first use.
func (s *Scope) Breaker(name string) *cb.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byName[name]
	if !ok {
		b = New(name, s.settings)
		s.byName[name] = b
	}
	return b
}

type scopeKey struct{}

// WithScope attaches s to ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the tick scope, or nil.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// Execute runs fn through the named breaker of the scope in ctx. Without a scope fn runs
// unguarded.
func Execute(ctx context.Context, name string, fn func() error) error {
	s := FromContext(ctx)
	if s == nil {
		return fn()
	}
	_, err := s.Breaker(name).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
