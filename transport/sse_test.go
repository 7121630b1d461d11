package transport

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/maxpert/feedwire/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventStream struct {
	resp   *http.Response
	reader *bufio.Reader
	cancel context.CancelFunc
}

func (f *testFeed) openStream(t *testing.T, query string) *eventStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	resp, err := f.get(t, ctx, PathServerSentEvents+query)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s := &eventStream{resp: resp, reader: bufio.NewReader(resp.Body), cancel: cancel}
	t.Cleanup(s.close)
	return s
}

func (s *eventStream) close() {
	s.cancel()
	s.resp.Body.Close()
}

// next reads one `data:` frame
func (s *eventStream) next(t *testing.T) feed.Delta {
	t.Helper()

	frames := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		var data string
		for {
			line, err := s.reader.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				frames <- data
				return
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	select {
	case data := <-frames:
		return decodeDelta(t, []byte(data))
	case err := <-errs:
		t.Fatalf("event stream ended: %v", err)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event frame")
	}
	return feed.Delta{}
}

func TestServerSentEventsHeaders(t *testing.T) {
	f := newTestFeed(t)
	s := f.openStream(t, "")

	assert.Equal(t, "text/event-stream", s.resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", s.resp.Header.Get("Cache-Control"))
	assert.Equal(t, "keep-alive", s.resp.Header.Get("Connection"))
}

func TestServerSentEventsAdvancesCursor(t *testing.T) {
	f := newTestFeed(t)
	f.log.Append(testRecords("Alice", "Bob")...)

	s := f.openStream(t, "?last=1")
	f.waitListeners(t, 1)

	f.publish("Carol")
	d := s.next(t)
	assert.Equal(t, []string{"Bob", "Carol"}, names(d))
	assert.Equal(t, 3, d.Last)

	f.publish("Dave", "Eve")
	d = s.next(t)
	assert.Equal(t, []string{"Dave", "Eve"}, names(d))
	assert.Equal(t, 5, d.Last)

	// A broadcast with nothing new still produces a valid empty delta
	f.notifier.Broadcast()
	d = s.next(t)
	assert.Empty(t, d.Users)
	assert.Equal(t, 5, d.Last)
}

func TestServerSentEventsDisconnectReleasesListener(t *testing.T) {
	f := newTestFeed(t)

	for i := 0; i < 10; i++ {
		s := f.openStream(t, "")
		f.waitListeners(t, 1)
		s.close()
		f.waitListeners(t, 0)
	}

	// Broadcasting after every stream left must not panic or block
	f.publish("Alice")
	assert.Equal(t, 0, f.notifier.Len())
}
