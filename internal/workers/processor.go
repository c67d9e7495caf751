package workers

import (
	"context"

	"github.com/hetulpatel/dlrarb/internal/tick"
)

// Processor journals consumed ticks whose best row changed.
type Processor struct {
	cache    tick.BestCache
	recorder tick.Recorder
}

// NewProcessor wires the journal; a nil cache journals every tick with a best row.
func NewProcessor(cache tick.BestCache, recorder tick.Recorder) *Processor {
	return &Processor{cache: cache, recorder: recorder}
}

func (p *Processor) Handle(ctx context.Context, res tick.Result) error {
	if res.Best == nil || p.recorder == nil {
		return nil
	}
	if p.cache != nil {
		changed, err := p.cache.Observe(ctx, res)
		if err == nil && !changed {
			return nil
		}
	}
	return p.recorder.RecordBest(ctx, res)
}
