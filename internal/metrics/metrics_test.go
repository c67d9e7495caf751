package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTick(t *testing.T) {
	m := New()
	m.RecordTick("mock", "ok", 0.2)
	m.RecordTick("mock", "ok", 0.3)
	m.RecordTick("ambito", "empty", 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("mock", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("ambito", "empty")))
}

func TestRecordFilteredSkipsZero(t *testing.T) {
	m := New()
	m.RecordFiltered("invalid_days", 0)
	m.RecordFiltered("inverted_quote", 3)

	assert.Equal(t, 1, testutil.CollectAndCount(m.FilteredTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilteredTotal.WithLabelValues("inverted_quote")))
}

func TestRecordBestReplacesStrategyLabel(t *testing.T) {
	m := New()
	m.RecordBest("mock", "Carry (Sell Futures)", 120)
	m.RecordBest("mock", "Reverse (Buy Futures)", 80)

	assert.Equal(t, 1, testutil.CollectAndCount(m.BestSpreadBps))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.BestSpreadBps.WithLabelValues("mock", "Reverse (Buy Futures)")))
}

func TestRecordSpotKeepsLatestMethod(t *testing.T) {
	m := New()
	m.RecordSpot("reference", 1450)
	m.RecordSpot("nearest_future", 1440)
	assert.Equal(t, 1, testutil.CollectAndCount(m.SpotPrice))
}
