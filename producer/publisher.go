package producer

import (
	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/notify"
	"github.com/maxpert/feedwire/telemetry"
	"github.com/rs/zerolog/log"
)

// Sink accepts batches of new records
type Sink interface {
	Publish(records ...feed.Record) int
}

// Publisher appends to the log, then broadcasts once per batch
type Publisher struct {
	log      *feed.Log
	notifier *notify.Notifier
}

// NewPublisher creates a publisher over log and notifier
func NewPublisher(l *feed.Log, n *notify.Notifier) *Publisher {
	return &Publisher{log: l, notifier: n}
}

// Publish appends records and wakes every listener. An empty batch neither
// appends nor broadcasts. It returns the new log length.
func (p *Publisher) Publish(records ...feed.Record) int {
	if len(records) == 0 {
		return p.log.Len()
	}

	length := p.log.Append(records...)
	delivered := p.notifier.Broadcast()

	telemetry.RecordsAppendedTotal.Add(float64(len(records)))
	telemetry.BroadcastsTotal.Inc()
	telemetry.LogLength.Set(float64(length))

	log.Debug().
		Int("records", len(records)).
		Int("length", length).
		Int("listeners", delivered).
		Msg("Published records")

	return length
}
