package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/dlrarb/internal/arb"
	"github.com/hetulpatel/dlrarb/internal/models"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestPublishTick(t *testing.T) {
	w := &captureWriter{}
	row := arb.Row{Ticker: "DLR/ENE26A", Days: 30, Strategy: arb.StrategyCarry, MaxSpreadBps: 651}
	res := tick.Result{TickID: "abc", Source: models.SourceRofex, FundingRate: 0.35, Rows: []arb.Row{row}, Best: &row}

	require.NoError(t, NewPublisher(w).PublishTick(context.Background(), res))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "rofex", string(msg.Key))
	assert.Equal(t, "tick_id", msg.Headers[0].Key)
	assert.Equal(t, "abc", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "abc", decoded["tick_id"])
	best := decoded["best"].(map[string]any)
	assert.Equal(t, "Carry (Sell Futures)", best["Strategy"])
	assert.EqualValues(t, 651, best["Max_Spread_bps"])
}

func TestPublishTickNilWriter(t *testing.T) {
	assert.NoError(t, PublishTick(context.Background(), nil, tick.Result{}))
}

func TestPublishTickPropagatesWriterError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	assert.Error(t, PublishTick(context.Background(), w, tick.Result{TickID: "x"}))
}
