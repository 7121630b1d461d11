package telemetry

import (
	"sync"
	"time"
)

// FeedStats is implemented by components reporting feed state
type FeedStats interface {
	Len() int
}

// MetricsCollector periodically samples the log and notifier into gauges
type MetricsCollector struct {
	log      FeedStats
	notifier FeedStats
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(log, notifier FeedStats, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		log:      log,
		notifier: notifier,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection
func (mc *MetricsCollector) Start() {
	mc.wg.Add(1)
	go mc.collectLoop()
}

// Stop stops the collector
func (mc *MetricsCollector) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

func (mc *MetricsCollector) collectLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	mc.collect()

	for {
		select {
		case <-ticker.C:
			mc.collect()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MetricsCollector) collect() {
	if mc.log != nil {
		LogLength.Set(float64(mc.log.Len()))
	}
	if mc.notifier != nil {
		ActiveListeners.Set(float64(mc.notifier.Len()))
	}
}
