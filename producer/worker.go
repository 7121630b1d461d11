package producer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxpert/feedwire/cfg"
	"github.com/maxpert/feedwire/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	// Default initial delay before restarting a failed source
	DefaultRetryInitial = 100 * time.Millisecond
	// Default maximum restart delay (exponential backoff cap)
	DefaultRetryMax = 30 * time.Second
	// Default exponential backoff multiplier
	DefaultRetryMultiplier = 2.0
)

// WorkerConfig configures the producer worker
type WorkerConfig struct {
	Source          Source        // Record source
	Sink            Sink          // Usually a *Publisher
	RetryInitial    time.Duration // Initial restart delay
	RetryMax        time.Duration // Max restart delay
	RetryMultiplier float64       // Backoff multiplier
}

// Worker runs a source and restarts it with exponential backoff when it
// fails
type Worker struct {
	config      WorkerConfig
	cancel      context.CancelFunc
	doneCh      chan struct{}
	running     atomic.Bool
	restarts    atomic.Int64
	lifecycleMu sync.Mutex
}

// NewWorker creates a new producer worker
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	if config.RetryInitial <= 0 {
		config.RetryInitial = DefaultRetryInitial
	}
	if config.RetryMax <= 0 {
		config.RetryMax = DefaultRetryMax
	}
	if config.RetryMultiplier <= 1 {
		config.RetryMultiplier = DefaultRetryMultiplier
	}

	return &Worker{config: config}, nil
}

// Start starts the worker goroutine
func (w *Worker) Start() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.running.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.running.Store(true)

	log.Info().Str("source", w.config.Source.Name()).Msg("Starting producer worker")

	go w.runLoop(ctx)
}

// Stop stops the source and waits for it to return
func (w *Worker) Stop() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if !w.running.Load() {
		return
	}

	w.cancel()
	<-w.doneCh
	w.running.Store(false)

	log.Info().Str("source", w.config.Source.Name()).Msg("Producer worker stopped")
}

// Restarts returns how many times the source was restarted after failing
func (w *Worker) Restarts() int64 {
	return w.restarts.Load()
}

func (w *Worker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	name := w.config.Source.Name()
	delay := w.config.RetryInitial

	for {
		started := time.Now()
		err := w.config.Source.Run(ctx, w.config.Sink)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			// A source that finished on its own is not restarted
			log.Info().Str("source", name).Msg("Producer source finished")
			return
		}

		// A source that ran for a while before failing starts a fresh backoff
		if time.Since(started) > w.config.RetryMax {
			delay = w.config.RetryInitial
		}

		w.restarts.Add(1)
		telemetry.ProducerRestartsTotal.With(name).Inc()
		log.Warn().
			Err(err).
			Str("source", name).
			Dur("retry_delay", delay).
			Msg("Producer source failed, restarting")

		if !sleep(ctx, delay) {
			return
		}

		delay = time.Duration(float64(delay) * w.config.RetryMultiplier)
		if delay > w.config.RetryMax {
			delay = w.config.RetryMax
		}
	}
}

// sleep sleeps for the given duration unless ctx is done first.
// Returns true if sleep completed, false if stopped.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// NewWorkerFromConfig builds the configured source and a worker feeding sink
func NewWorkerFromConfig(config cfg.ProducerConfiguration, sink Sink) (*Worker, error) {
	src, err := NewSource(config)
	if err != nil {
		return nil, err
	}
	return NewWorker(WorkerConfig{
		Source:          src,
		Sink:            sink,
		RetryInitial:    msDuration(config.RetryInitialMS),
		RetryMax:        msDuration(config.RetryMaxMS),
		RetryMultiplier: config.RetryMultiplier,
	})
}
