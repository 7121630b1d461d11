package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/transport"
	"github.com/rs/zerolog/log"
)

// reconnect runs connect until ctx is done, pausing retryDelay between
// attempts.
func reconnect(ctx context.Context, e *env, kind transport.Kind, connect func(ctx context.Context) error) {
	for {
		err := connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("strategy", kind.String()).Msg("Stream interrupted, reconnecting")
		}
		if !sleep(ctx, e.retryDelay) {
			return
		}
	}
}

// BidiPush holds a WebSocket open. It announces its cursor on connect and
// consumes every delta the server pushes.
type BidiPush struct {
	runner
}

func (s *BidiPush) Kind() transport.Kind { return transport.BidiPush }

func (s *BidiPush) start(ctx context.Context, e *env) {
	s.launch(ctx, func(ctx context.Context) {
		reconnect(ctx, e, s.Kind(), func(ctx context.Context) error {
			return s.connect(ctx, e)
		})
	})
}

func (s *BidiPush) connect(ctx context.Context, e *env) error {
	target, err := e.endpoint(e.webSocketURL, "")
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", e.webSocketURL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(e.readLimit)

	hello := transport.CursorMessage{LastUserIndex: e.cursor()}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		return fmt.Errorf("failed to send cursor: %w", err)
	}
	log.Debug().Int("cursor", hello.LastUserIndex).Msg("WebSocket connected")

	for {
		var d feed.Delta
		if err := wsjson.Read(ctx, conn, &d); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return err
		}
		e.deliver(d)
	}
}

func (s *BidiPush) stop() { s.halt() }

// UniPush consumes a Server-Sent Events stream, reconnecting from the
// session cursor when the stream ends.
type UniPush struct {
	runner
}

func (s *UniPush) Kind() transport.Kind { return transport.UniPush }

func (s *UniPush) start(ctx context.Context, e *env) {
	s.launch(ctx, func(ctx context.Context) {
		reconnect(ctx, e, s.Kind(), func(ctx context.Context) error {
			return s.connect(ctx, e)
		})
	})
}

var (
	ssePrefix       = []byte("data:")
	errStreamClosed = errors.New("event stream closed by server")
)

func (s *UniPush) connect(ctx context.Context, e *env) error {
	target, err := e.endpoint(e.serverURL, transport.PathServerSentEvents)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from event stream", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), int(e.readLimit))
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, ssePrefix) {
			// Blank separators, comments and other fields
			continue
		}

		var d feed.Delta
		payload := bytes.TrimSpace(line[len(ssePrefix):])
		if err := json.Unmarshal(payload, &d); err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed event")
			continue
		}
		e.deliver(d)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return errStreamClosed
}

func (s *UniPush) stop() { s.halt() }
