package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/maxpert/feedwire/cfg"
	"github.com/maxpert/feedwire/producer"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultKafkaMinBytes = 1
	DefaultKafkaMaxBytes = 1 << 20 // 1MB
)

func init() {
	producer.RegisterSource(cfg.SourceKafka, func(config cfg.ProducerConfiguration) (producer.Source, error) {
		return NewKafkaSource(KafkaConfig{
			Brokers: config.Kafka.Brokers,
			Topic:   config.Kafka.Topic,
			GroupID: config.Kafka.GroupID,
		})
	})
}

// KafkaConfig holds configuration for KafkaSource
type KafkaConfig struct {
	Brokers  []string // Kafka broker addresses
	Topic    string   // Topic carrying JSON records
	GroupID  string   // Consumer group; offsets are committed after publishing
	MinBytes int      // Fetch min bytes (default: 1)
	MaxBytes int      // Fetch max bytes (default: 1MB)
}

// KafkaSource publishes records consumed from a Kafka topic
type KafkaSource struct {
	config KafkaConfig
}

// NewKafkaSource creates a KafkaSource. It connects when run.
func NewKafkaSource(config KafkaConfig) (*KafkaSource, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka source requires at least one broker address")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka source requires a topic")
	}
	if config.MinBytes <= 0 {
		config.MinBytes = DefaultKafkaMinBytes
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultKafkaMaxBytes
	}
	return &KafkaSource{config: config}, nil
}

func (k *KafkaSource) Name() string { return string(cfg.SourceKafka) }

func (k *KafkaSource) readerConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:  k.config.Brokers,
		Topic:    k.config.Topic,
		GroupID:  k.config.GroupID,
		MinBytes: k.config.MinBytes,
		MaxBytes: k.config.MaxBytes,
	}
}

func (k *KafkaSource) Run(ctx context.Context, sink producer.Sink) error {
	reader := kafka.NewReader(k.readerConfig())
	defer reader.Close()

	log.Info().
		Strs("brokers", k.config.Brokers).
		Str("topic", k.config.Topic).
		Str("group", k.config.GroupID).
		Msg("Kafka source started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch from %s: %w", k.config.Topic, err)
		}

		records, err := producer.DecodeRecords(msg.Value)
		if err != nil {
			log.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Dropping malformed Kafka message")
		} else {
			sink.Publish(records...)
		}

		// Without a group there are no offsets to commit
		if k.config.GroupID == "" {
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset: %w", err)
		}
	}
}
