package telemetry

// Transport label values, one per delivery strategy
const (
	TransportIntervalPoll = "interval_poll"
	TransportBlockingPoll = "blocking_poll"
	TransportBidiPush     = "websocket"
	TransportUniPush      = "sse"
)

var (
	// BlockingPollBuckets spans immediate wakeups to multi-minute idle waits
	BlockingPollBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300}
)

// Log and notifier metrics
var (
	// RecordsAppendedTotal counts records appended by producers
	RecordsAppendedTotal Counter = NoopStat{}

	// BroadcastsTotal counts change broadcasts
	BroadcastsTotal Counter = NoopStat{}

	// LogLength tracks the number of records in the log
	LogLength Gauge = NoopStat{}

	// ActiveListeners tracks notifier registrations (leaks show up here)
	ActiveListeners Gauge = NoopStat{}

	// ProducerRestartsTotal counts producer source restarts after errors
	ProducerRestartsTotal CounterVec = noopCounterVec{}
)

// Transport metrics
var (
	// SubscriptionsOpenedTotal counts attached subscribers by transport
	SubscriptionsOpenedTotal CounterVec = noopCounterVec{}

	// DeltasDeliveredTotal counts deltas sent by transport
	DeltasDeliveredTotal CounterVec = noopCounterVec{}

	// RecordsDeliveredTotal counts records sent by transport
	RecordsDeliveredTotal CounterVec = noopCounterVec{}

	// MalformedMessagesTotal counts unparsable client messages
	MalformedMessagesTotal Counter = NoopStat{}

	// BlockingPollAbandonedTotal counts long-poll requests the client gave up on
	BlockingPollAbandonedTotal Counter = NoopStat{}

	// BlockingPollWaitSeconds measures how long long-poll requests were held
	BlockingPollWaitSeconds Histogram = NoopStat{}
)

// InitMetrics binds all metrics to the registry. Call after InitializeTelemetry.
func InitMetrics() {
	RecordsAppendedTotal = NewCounter(
		"records_appended_total",
		"Total records appended to the feed log",
	)
	BroadcastsTotal = NewCounter(
		"broadcasts_total",
		"Total change broadcasts",
	)
	LogLength = NewGauge(
		"log_length",
		"Number of records in the feed log",
	)
	ActiveListeners = NewGauge(
		"active_listeners",
		"Number of listeners registered on the change notifier",
	)
	ProducerRestartsTotal = NewCounterVec(
		"producer_restarts_total",
		"Producer source restarts after failure",
		[]string{"source"},
	)

	SubscriptionsOpenedTotal = NewCounterVec(
		"subscriptions_opened_total",
		"Subscribers attached by transport",
		[]string{"transport"},
	)
	DeltasDeliveredTotal = NewCounterVec(
		"deltas_delivered_total",
		"Deltas delivered by transport",
		[]string{"transport"},
	)
	RecordsDeliveredTotal = NewCounterVec(
		"records_delivered_total",
		"Records delivered by transport",
		[]string{"transport"},
	)
	MalformedMessagesTotal = NewCounter(
		"malformed_messages_total",
		"Client messages that could not be parsed",
	)
	BlockingPollAbandonedTotal = NewCounter(
		"blocking_poll_abandoned_total",
		"Long-poll requests cancelled before a broadcast",
	)
	BlockingPollWaitSeconds = NewHistogramWithBuckets(
		"blocking_poll_wait_seconds",
		"Time long-poll requests were held open",
		BlockingPollBuckets,
	)
}

// RecordDelivery updates delivery counters for one sent delta
func RecordDelivery(transport string, records int) {
	DeltasDeliveredTotal.With(transport).Inc()
	RecordsDeliveredTotal.With(transport).Add(float64(records))
}
