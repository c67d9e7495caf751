package breakers

import (
	"context"
	"errors"
	"testing"

	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{ConsecutiveFailures: 2})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	called := false
	_, err := b.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, cb.ErrOpenState)
}

func TestExecuteWithoutScopeRunsDirectly(t *testing.T) {
	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, Execute(context.Background(), "spot", func() error { return boom }), boom)
	}
	assert.NoError(t, Execute(context.Background(), "spot", func() error { return nil }))
}

func TestScopeIsolatesEndpoints(t *testing.T) {
	ctx := WithScope(context.Background(), NewScope(Settings{}))
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, Execute(ctx, "ambito.spot", func() error { return boom }), boom)
	}
	assert.ErrorIs(t, Execute(ctx, "ambito.spot", func() error { return nil }), cb.ErrOpenState)

	called := false
	require.NoError(t, Execute(ctx, "ambito.futures", func() error {
		called = true
		return nil
	}))
	assert.True(t, called, "an open spot breaker must not block futures")
}

func TestNextTickStartsClosed(t *testing.T) {
	boom := errors.New("boom")
	tick1 := WithScope(context.Background(), NewScope(Settings{}))
	for i := 0; i < 3; i++ {
		_ = Execute(tick1, "rofex.instruments", func() error { return boom })
	}
	require.ErrorIs(t, Execute(tick1, "rofex.instruments", func() error { return nil }), cb.ErrOpenState)

	tick2 := WithScope(context.Background(), NewScope(Settings{}))
	assert.NoError(t, Execute(tick2, "rofex.instruments", func() error { return nil }))
}

func TestScopeReusesBreaker(t *testing.T) {
	s := NewScope(Settings{})
	assert.Same(t, s.Breaker("a"), s.Breaker("a"))
	assert.NotSame(t, s.Breaker("a"), s.Breaker("b"))
	assert.Nil(t, FromContext(context.Background()))
}
