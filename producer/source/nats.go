// Package source provides message broker producers. Importing it registers
// the "nats" and "kafka" source types with the producer registry.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maxpert/feedwire/cfg"
	"github.com/maxpert/feedwire/producer"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const natsPendingMessages = 256

var errNATSClosed = errors.New("nats connection closed")

func init() {
	producer.RegisterSource(cfg.SourceNATS, func(config cfg.ProducerConfiguration) (producer.Source, error) {
		return NewNATSSource(config.NATS.URL, config.NATS.Subject)
	})
}

// NATSSource publishes records received on a core NATS subject. Each message
// carries one JSON record or a JSON array of records.
type NATSSource struct {
	url     string
	subject string
}

// NewNATSSource creates a NATS source. It connects when run.
func NewNATSSource(url, subject string) (*NATSSource, error) {
	if url == "" {
		return nil, fmt.Errorf("nats source requires url")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats source requires subject")
	}
	return &NATSSource{url: url, subject: subject}, nil
}

func (n *NATSSource) Name() string { return string(cfg.SourceNATS) }

func (n *NATSSource) Run(ctx context.Context, sink producer.Sink) error {
	closed := make(chan struct{})
	nc, err := nats.Connect(n.url,
		nats.Name("feedwire"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, natsPendingMessages)
	sub, err := nc.ChanSubscribe(n.subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", n.subject, err)
	}
	defer sub.Unsubscribe()

	log.Info().Str("url", n.url).Str("subject", n.subject).Msg("NATS source subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return errNATSClosed
		case msg := <-msgs:
			records, err := producer.DecodeRecords(msg.Data)
			if err != nil {
				log.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping malformed NATS message")
				continue
			}
			sink.Publish(records...)
		}
	}
}
