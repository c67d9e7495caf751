// Package workers consumes published tick results from Kafka.
package workers

import (
	"context"
	"encoding/json"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

type Handler func(context.Context, tick.Result) error

// MessageReader is the subset of *kafka.Reader a worker needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Run starts workerCount consumers, each with its own reader, and blocks until ctx ends.
func Run(ctx context.Context, newReader func() MessageReader, workerCount int, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := newReader()
			defer reader.Close()
			logging.Debugf("[workers] consumer %d started", id)
			Consume(ctx, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

// Consume reads until ctx ends. Undecodable messages and handler errors are logged.
func Consume(ctx context.Context, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[workers] read error: %v", err)
			continue
		}

		var res tick.Result
		if err := json.Unmarshal(msg.Value, &res); err != nil {
			logging.Errorf("[workers] unmarshal error at offset %d: %v", msg.Offset, err)
			continue
		}

		if handler != nil {
			if err := handler(ctx, res); err != nil {
				logging.Errorf("[workers] handler error for tick %s: %v", res.TickID, err)
			}
		}
	}
}
