package telemetry

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStats struct{ calls atomic.Int64 }

func (f *fakeStats) Len() int {
	f.calls.Add(1)
	return 7
}

type recordingGauge struct {
	NoopStat
	last atomic.Int64
}

func (g *recordingGauge) Set(v float64) { g.last.Store(int64(v)) }

func TestMetricsCollectorSamples(t *testing.T) {
	origLen, origListeners := LogLength, ActiveListeners
	defer func() { LogLength, ActiveListeners = origLen, origListeners }()

	lenGauge := &recordingGauge{}
	listenerGauge := &recordingGauge{}
	LogLength = lenGauge
	ActiveListeners = listenerGauge

	stats := &fakeStats{}
	mc := NewMetricsCollector(stats, stats, 5*time.Millisecond)
	mc.Start()

	assert.Eventually(t, func() bool {
		return stats.calls.Load() >= 4
	}, time.Second, 5*time.Millisecond)
	mc.Stop()

	assert.Equal(t, int64(7), lenGauge.last.Load())
	assert.Equal(t, int64(7), listenerGauge.last.Load())
}

func TestNoopMetricsWithoutRegistry(t *testing.T) {
	assert.Nil(t, GetMetricsHandler())

	c := NewCounterVec("unused_total", "unused", []string{"transport"})
	assert.NotPanics(t, func() {
		c.With(TransportUniPush).Inc()
		RecordDelivery(TransportIntervalPoll, 3)
	})
}
