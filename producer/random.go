package producer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/maxpert/feedwire/cfg"
	"github.com/maxpert/feedwire/feed"
)

var (
	firstNames = []string{
		"Alice", "Bob", "Charlotte", "David", "Emma", "Frank", "Grace", "Henry", "Isabella",
		"James", "Katherine", "Liam", "Alexander", "Sophia", "William", "Olivia",
	}
	lastNames = []string{
		"Smith", "Williams", "Jones", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
		"Wilson", "Anderson", "Brown", "Clark", "Davis", "Evans", "Foster", "Garcia", "Harris", "Irwin",
	}
)

// RandomConfig configures the random source
type RandomConfig struct {
	MaxInterval time.Duration // Upper bound on the pause before each record
	Seed        uint64        // 0 = random seed
}

// RandomSource publishes one made-up user after each random pause
type RandomSource struct {
	maxInterval time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource creates a random source
func NewRandomSource(config RandomConfig) (*RandomSource, error) {
	if config.MaxInterval <= 0 {
		return nil, fmt.Errorf("random source requires a positive max interval")
	}

	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &RandomSource{
		maxInterval: config.MaxInterval,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (s *RandomSource) Name() string { return string(cfg.SourceRandom) }

// Next returns a random record
func (s *RandomSource) Next() feed.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return feed.Record{
		Name:     firstNames[s.rng.IntN(len(firstNames))],
		LastName: lastNames[s.rng.IntN(len(lastNames))],
	}
}

func (s *RandomSource) pause() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rng.Int64N(int64(s.maxInterval)))
}

func (s *RandomSource) Run(ctx context.Context, sink Sink) error {
	timer := time.NewTimer(s.pause())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		sink.Publish(s.Next())
		timer.Reset(s.pause())
	}
}
