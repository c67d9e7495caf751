package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/dlrarb/internal/tick"
)

// OpportunityRecord captures the best row of the latest tick for a source.
type OpportunityRecord struct {
	TickID       string    `json:"tick_id"`
	Ticker       string    `json:"ticker"`
	Strategy     string    `json:"strategy"`
	Days         int       `json:"days"`
	MaxSpreadBps float64   `json:"max_spread_bps"`
	Fingerprint  string    `json:"fingerprint"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OpportunityCache stores the best opportunity per source so repeated ticks with the same
// answer are not journaled twice.
type OpportunityCache interface {
	Get(ctx context.Context, source string) (*OpportunityRecord, bool, error)
	Set(ctx context.Context, source string, record OpportunityRecord) error
	Observe(ctx context.Context, res tick.Result) (bool, error)
	Close() error
}

type redisOpportunityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisOpportunityCache builds a cache keyed by feed source.
func NewRedisOpportunityCache(addr, password string, db int, ttl time.Duration, prefix string) (OpportunityCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewOpportunityCacheWithClient(client, ttl, prefix), nil
}

// NewOpportunityCacheWithClient wraps an existing client.
func NewOpportunityCacheWithClient(client *redis.Client, ttl time.Duration, prefix string) OpportunityCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "dlr_best"
	}
	return &redisOpportunityCache{client: client, ttl: ttl, prefix: prefix, now: time.Now}
}

func (c *redisOpportunityCache) key(source string) string {
	return fmt.Sprintf("%s:%s", c.prefix, source)
}

func (c *redisOpportunityCache) Get(ctx context.Context, source string) (*OpportunityRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(source)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record OpportunityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *redisOpportunityCache) Set(ctx context.Context, source string, record OpportunityRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(source), payload, c.ttl).Err()
}

// Observe stores the tick's best row and reports whether it differs from the cached one.
// Spreads are compared at whole-bps resolution.
func (c *redisOpportunityCache) Observe(ctx context.Context, res tick.Result) (bool, error) {
	if res.Best == nil {
		return false, nil
	}
	source := string(res.Source)
	fp := res.Fingerprint()

	prev, ok, err := c.Get(ctx, source)
	if err != nil {
		return false, err
	}
	if ok && prev.Fingerprint == fp {
		return false, nil
	}
	record := OpportunityRecord{
		TickID:       res.TickID,
		Ticker:       res.Best.Ticker,
		Strategy:     string(res.Best.Strategy),
		Days:         res.Best.Days,
		MaxSpreadBps: res.Best.MaxSpreadBps,
		Fingerprint:  fp,
		UpdatedAt:    c.now().UTC(),
	}
	if err := c.Set(ctx, source, record); err != nil {
		return false, err
	}
	return true, nil
}

func (c *redisOpportunityCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
