// Package mock generates a synthetic DLR futures term structure for demos and tests.
package mock

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hetulpatel/dlrarb/internal/models"
)

// Defaults for the synthetic curve.
const (
	DefaultSpot        = 1450.50
	DefaultRate        = 0.40
	DefaultTenors      = 6
	DefaultStepDays    = 30
	DefaultQuoteOffset = 2.0
	DefaultNoiseLow    = -5.0
	DefaultNoiseHigh   = 10.0
	DefaultFundingRate = 0.35
)

// Feed prices each tenor at spot·(1+rate·days/365) plus uniform noise and quotes it at a
// fixed absolute offset on each side.
type Feed struct {
	Spot        float64
	Rate        float64
	Tenors      int
	StepDays    int
	QuoteOffset float64
	NoiseLow    float64
	NoiseHigh   float64
	FundingRate float64
	Now         func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFeed returns a feed with the default curve. A nil rng uses a time-seeded source.
func NewFeed(rng *rand.Rand) *Feed {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Feed{
		Spot:        DefaultSpot,
		Rate:        DefaultRate,
		Tenors:      DefaultTenors,
		StepDays:    DefaultStepDays,
		QuoteOffset: DefaultQuoteOffset,
		NoiseLow:    DefaultNoiseLow,
		NoiseHigh:   DefaultNoiseHigh,
		FundingRate: DefaultFundingRate,
		Now:         time.Now,
		rng:         rng,
	}
}

func (f *Feed) Name() string {
	return string(models.SourceMock)
}

// Snapshot returns an empty snapshot unless allowSynthetic is set.
func (f *Feed) Snapshot(_ context.Context, allowSynthetic bool) (models.MarketSnapshot, error) {
	now := f.Now().UTC()
	rates := map[string]float64{models.DefaultFundingTenor: f.FundingRate}
	if !allowSynthetic {
		return models.NewSnapshot(models.SourceMock, now, rates, nil), nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	contracts := make([]models.Contract, 0, f.Tenors)
	for i := 1; i <= f.Tenors; i++ {
		days := f.StepDays * i
		price := f.Spot*(1+f.Rate*float64(days)/365) + f.noise()
		contracts = append(contracts, models.Contract{
			Ticker:   fmt.Sprintf("DLR/MOCK%d", i),
			Maturity: today.AddDate(0, 0, days),
			Days:     days,
			Bid:      models.Price(round2(price - f.QuoteOffset)),
			Ask:      models.Price(round2(price + f.QuoteOffset)),
			Last:     models.Price(round2(price)),
		})
	}

	snap := models.NewSnapshot(models.SourceMock, now, rates, contracts)
	snap.Spot = models.Price(f.Spot)
	snap.SpotMethod = models.SpotReference
	return snap, nil
}

func (f *Feed) noise() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.NoiseLow + f.rng.Float64()*(f.NoiseHigh-f.NoiseLow)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
