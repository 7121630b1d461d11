package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/maxpert/feedwire/cfg"
	"github.com/maxpert/feedwire/feed"
)

// Source produces records until ctx is done. Run returns nil on a clean
// stop and an error when the source failed and may be restarted.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// SourceFactory creates a Source from the producer configuration
type SourceFactory func(cfg.ProducerConfiguration) (Source, error)

var (
	sourceFactories = make(map[cfg.SourceType]SourceFactory)
	factoryMu       sync.RWMutex
)

// RegisterSource registers a source factory for a type
func RegisterSource(sourceType cfg.SourceType, factory SourceFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	sourceFactories[sourceType] = factory
}

// NewSource creates a source based on the configuration
func NewSource(config cfg.ProducerConfiguration) (Source, error) {
	factoryMu.RLock()
	factory, exists := sourceFactories[config.Source]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown source type: %s", config.Source)
	}

	return factory(config)
}

func init() {
	RegisterSource(cfg.SourceRandom, func(config cfg.ProducerConfiguration) (Source, error) {
		return NewRandomSource(RandomConfig{MaxInterval: msDuration(config.MaxIntervalMS)})
	})
	RegisterSource(cfg.SourceNone, func(cfg.ProducerConfiguration) (Source, error) {
		return idleSource{}, nil
	})
}

// idleSource produces nothing; the log only grows through other means
type idleSource struct{}

func (idleSource) Name() string { return string(cfg.SourceNone) }

func (idleSource) Run(ctx context.Context, _ Sink) error {
	<-ctx.Done()
	return nil
}

var errEmptyPayload = errors.New("empty payload")

// DecodeRecords parses a broker payload holding either one record object or
// an array of them. Every record must have a name.
func DecodeRecords(data []byte) ([]feed.Record, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errEmptyPayload
	}

	var records []feed.Record
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, fmt.Errorf("invalid record array: %w", err)
		}
	} else {
		var r feed.Record
		if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
			return nil, fmt.Errorf("invalid record: %w", err)
		}
		records = []feed.Record{r}
	}

	for i, r := range records {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("record %d has no name", i)
		}
	}
	return records, nil
}
