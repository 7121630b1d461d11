package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/transport"
)

// Strategy is a running delivery strategy. The set is closed: only the four
// types in this package implement it.
type Strategy interface {
	Kind() transport.Kind

	start(ctx context.Context, e *env)
	stop()
}

// env is what a strategy needs from its session
type env struct {
	client       *http.Client
	serverURL    string
	webSocketURL string
	pollInterval time.Duration
	retryDelay   time.Duration
	readLimit    int64

	cursor  func() int
	deliver func(feed.Delta)
}

// endpoint builds base+path?last=<cursor>
func (e *env) endpoint(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", base, err)
	}
	if path != "" {
		u = u.JoinPath(path)
	}
	q := u.Query()
	q.Set(transport.CursorParam, strconv.Itoa(e.cursor()))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchDelta performs one GET against a polling endpoint
func (e *env) fetchDelta(ctx context.Context, path string) (feed.Delta, error) {
	target, err := e.endpoint(e.serverURL, path)
	if err != nil {
		return feed.Delta{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return feed.Delta{}, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return feed.Delta{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feed.Delta{}, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	var d feed.Delta
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return feed.Delta{}, fmt.Errorf("failed to decode delta: %w", err)
	}
	return d, nil
}

// sleep waits for d or until ctx is done, reporting whether it slept fully
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// runner owns the goroutine of one strategy
type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *runner) launch(parent context.Context, loop func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		loop(ctx)
	}()
}

// halt cancels the loop and waits for it to return
func (r *runner) halt() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func newStrategy(kind transport.Kind) (Strategy, error) {
	switch kind {
	case transport.IntervalPoll:
		return &IntervalPoll{}, nil
	case transport.BlockingPoll:
		return &BlockingPoll{}, nil
	case transport.BidiPush:
		return &BidiPush{}, nil
	case transport.UniPush:
		return &UniPush{}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, kind)
	}
}
