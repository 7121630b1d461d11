package session

import (
	"context"
	"time"

	"github.com/maxpert/feedwire/transport"
	"github.com/rs/zerolog/log"
)

// IntervalPoll asks for a delta every poll interval, the first one after a
// full interval.
type IntervalPoll struct {
	runner
}

func (s *IntervalPoll) Kind() transport.Kind { return transport.IntervalPoll }

func (s *IntervalPoll) start(ctx context.Context, e *env) {
	s.launch(ctx, func(ctx context.Context) {
		timer := time.NewTimer(e.pollInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			d, err := e.fetchDelta(ctx, transport.PathIntervalPoll)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Str("strategy", s.Kind().String()).Msg("Poll failed")
			} else {
				e.deliver(d)
			}
			timer.Reset(e.pollInterval)
		}
	})
}

func (s *IntervalPoll) stop() { s.halt() }

// BlockingPoll keeps one long-poll request in flight, re-issuing it as soon
// as the previous one is answered.
type BlockingPoll struct {
	runner
}

func (s *BlockingPoll) Kind() transport.Kind { return transport.BlockingPoll }

func (s *BlockingPoll) start(ctx context.Context, e *env) {
	s.launch(ctx, func(ctx context.Context) {
		for ctx.Err() == nil {
			d, err := e.fetchDelta(ctx, transport.PathBlockingPoll)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Str("strategy", s.Kind().String()).Msg("Long-poll failed")
				if !sleep(ctx, e.retryDelay) {
					return
				}
				continue
			}
			e.deliver(d)
		}
	})
}

func (s *BlockingPoll) stop() { s.halt() }
