package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hetulpatel/dlrarb/internal/ambito"
	"github.com/hetulpatel/dlrarb/internal/arb"
	"github.com/hetulpatel/dlrarb/internal/cache"
	"github.com/hetulpatel/dlrarb/internal/collectors"
	"github.com/hetulpatel/dlrarb/internal/config"
	"github.com/hetulpatel/dlrarb/internal/kafka"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/metrics"
	"github.com/hetulpatel/dlrarb/internal/mock"
	"github.com/hetulpatel/dlrarb/internal/queue"
	"github.com/hetulpatel/dlrarb/internal/rofex"
	sqlstore "github.com/hetulpatel/dlrarb/internal/storage/sqlite"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

// app holds the runner and every optional sink so they can be closed together.
type app struct {
	runner  *tick.Runner
	metrics *metrics.Metrics
	journal *sqlstore.Store
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warnf("[arb_monitor] close: %v", err)
		}
	}
}

func newMockFeed(c *config.Config) *mock.Feed {
	if c.Mock.Seed != 0 {
		return mock.NewFeed(rand.New(rand.NewSource(c.Mock.Seed)))
	}
	return mock.NewFeed(nil)
}

func newAmbitoClient(c *config.Config) *ambito.Client {
	return ambito.NewClient(ambito.Config{
		FuturesURL:     c.Ambito.FuturesURL,
		SpotURL:        c.Ambito.SpotURL,
		SpotTimeout:    c.Ambito.SpotTimeout,
		FuturesTimeout: c.Ambito.FuturesTimeout,
	})
}

func newRofexFeed(c *config.Config) (*rofex.Feed, error) {
	norm, err := c.Normalizer()
	if err != nil {
		return nil, err
	}
	env, err := rofex.ParseEnvironment(c.Rofex.Environment)
	if err != nil {
		return nil, err
	}
	opts := rofex.DefaultFeedOptions()
	opts.Filter = c.TickerFilter()
	opts.Limit = c.Rofex.TickerLimit
	opts.Normalizer = norm
	opts.Reference = newAmbitoClient(c)
	opts.FallbackRate = c.FallbackRate
	opts.Fallback = newMockFeed(c)

	return rofex.NewFeed(rofex.Config{
		Credentials: c.RofexCredentials(),
		Environment: env,
		BaseURL:     c.Rofex.BaseURL,
		Timeout:     c.Rofex.Timeout,
	}, opts)
}

func buildFeed(c *config.Config) (collectors.Feed, error) {
	switch c.Feed {
	case config.FeedMock:
		return newMockFeed(c), nil
	case config.FeedAmbito:
		norm, err := c.Normalizer()
		if err != nil {
			return nil, err
		}
		return ambito.NewFeed(newAmbitoClient(c), norm, c.FallbackRate), nil
	case config.FeedRofex:
		f, err := newRofexFeed(c)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: feed %q", config.ErrInvalid, c.Feed)
	}
}

// buildApp wires the feed, monitor, metrics and whichever sinks are configured.
// Sink setup failures are logged and the sink is skipped.
func buildApp(ctx context.Context, c *config.Config) (*app, error) {
	feed, err := buildFeed(c)
	if err != nil {
		return nil, err
	}

	a := &app{metrics: metrics.New()}
	opts := []tick.Option{tick.WithMetrics(a.metrics)}

	if c.Redis.Addr != "" {
		oc, err := cache.NewRedisOpportunityCache(c.Redis.Addr, c.Redis.Password, c.Redis.DB, c.Redis.TTL, c.Redis.Prefix)
		if err != nil {
			logging.Warnf("[arb_monitor] redis cache disabled: %v", err)
		} else {
			opts = append(opts, tick.WithBestCache(oc))
			a.closers = append(a.closers, oc.Close)
		}
	}

	if brokers := kafka.ParseBrokers(c.Kafka.Brokers); len(brokers) > 0 {
		if pub, closeFn, err := connectPublisher(ctx, brokers, c.Kafka.Topic); err != nil {
			logging.Warnf("[arb_monitor] kafka publishing disabled: %v", err)
		} else {
			opts = append(opts, tick.WithPublisher(pub))
			a.closers = append(a.closers, closeFn)
		}
	}

	if c.SQLite.Path != "" {
		store, err := sqlstore.Open(c.SQLite.Path)
		if err != nil {
			logging.Warnf("[arb_monitor] journal disabled: %v", err)
		} else if err := store.CreateTables(ctx); err != nil {
			logging.Warnf("[arb_monitor] journal disabled: %v", err)
			store.Close()
		} else {
			a.journal = store
			opts = append(opts, tick.WithRecorder(store))
			a.closers = append(a.closers, store.Close)
		}
	}

	a.runner = tick.NewRunner(feed, arb.NewMonitor(c.FundingTenor), opts...)
	return a, nil
}

func connectPublisher(ctx context.Context, brokers []string, topic string) (*queue.Publisher, func() error, error) {
	if topic == "" {
		topic = kafka.DefaultTicksTopic
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(waitCtx, brokers, topic); err != nil {
		logging.Warnf("[arb_monitor] ensure topic %s: %v", topic, err)
	}
	writer := kafka.NewWriter(brokers, topic)
	logging.Infof("[arb_monitor] publishing ticks to %s on %v", topic, brokers)
	return queue.NewPublisher(writer), writer.Close, nil
}
