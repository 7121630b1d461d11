package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/maxpert/feedwire/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *testFeed) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + PathWebSocket + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))
}

func receive(t *testing.T, conn *websocket.Conn) feed.Delta {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	return decodeDelta(t, data)
}

func TestParseCursorMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"number", `{"lastUserIndex":3}`, 3, false},
		{"string", `{"lastUserIndex":"4"}`, 4, false},
		{"negative", `{"lastUserIndex":-1}`, 0, false},
		{"garbage value", `{"lastUserIndex":"x"}`, 0, false},
		{"missing", `{"other":1}`, 0, true},
		{"null", `{"lastUserIndex":null}`, 0, true},
		{"not json", `hello`, 0, true},
		{"array", `[1]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCursorMessage([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebSocketPersonalisedFanOut(t *testing.T) {
	f := newTestFeed(t)
	f.log.Append(testRecords("Alice", "Bob")...)

	behind := f.dial(t, "?last=0")
	current := f.dial(t, "?last=2")
	f.waitListeners(t, 2)

	f.publish("Carol")

	d := receive(t, behind)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(d))
	assert.Equal(t, 3, d.Last)

	d = receive(t, current)
	assert.Equal(t, []string{"Carol"}, names(d))
	assert.Equal(t, 3, d.Last)

	// Both cursors advanced to 3
	f.publish("Dave")
	assert.Equal(t, []string{"Dave"}, names(receive(t, behind)))
	assert.Equal(t, []string{"Dave"}, names(receive(t, current)))
}

func TestWebSocketClientCursorUpdate(t *testing.T) {
	f := newTestFeed(t)
	f.log.Append(testRecords("Alice", "Bob", "Carol")...)

	conn := f.dial(t, "")
	f.waitListeners(t, 1)

	// The cursor message races with the broadcast; retry until the server
	// has applied it.
	var d feed.Delta
	for attempt := 0; attempt < 50; attempt++ {
		sendText(t, conn, `{"lastUserIndex":2}`)
		time.Sleep(10 * time.Millisecond)
		f.notifier.Broadcast()
		d = receive(t, conn)
		if len(d.Users) == 1 {
			break
		}
	}
	assert.Equal(t, []string{"Carol"}, names(d))
	assert.Equal(t, 3, d.Last)
}

func TestWebSocketMalformedMessageIgnored(t *testing.T) {
	f := newTestFeed(t)
	f.log.Append(testRecords("Alice")...)

	conn := f.dial(t, "")
	other := f.dial(t, "")
	f.waitListeners(t, 2)

	sendText(t, conn, `not json`)
	sendText(t, conn, `{"unexpected":true}`)

	f.publish("Bob")

	// Both connections stay open and keep receiving
	assert.Equal(t, []string{"Alice", "Bob"}, names(receive(t, conn)))
	assert.Equal(t, []string{"Alice", "Bob"}, names(receive(t, other)))
	assert.Equal(t, 2, f.notifier.Len())
}

func TestWebSocketDisconnectReleasesListener(t *testing.T) {
	f := newTestFeed(t)

	for i := 0; i < 10; i++ {
		conn := f.dial(t, "")
		f.waitListeners(t, 1)
		conn.Close(websocket.StatusNormalClosure, "")
		f.waitListeners(t, 0)
	}

	f.publish("Alice")
	assert.Equal(t, 0, f.notifier.Len())
}

func TestWebSocketShutdownClosesConnections(t *testing.T) {
	f := newTestFeed(t)
	conn := f.dial(t, "")
	f.waitListeners(t, 1)

	f.handlers.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	f.waitListeners(t, 0)
}

func TestWebSocketFirstCursorMessageAppliesBeforePush(t *testing.T) {
	f := newTestFeed(t, func(c *Config) {
		c.HandshakeTimeout = waitFor
	})
	f.log.Append(testRecords("Alice", "Bob", "Carol")...)

	conn := f.dial(t, "")
	f.waitListeners(t, 1)

	// Broadcast before the client has said where it is
	f.publish("Dave")
	sendText(t, conn, `{"lastUserIndex":2}`)

	d := receive(t, conn)
	assert.Equal(t, []string{"Carol", "Dave"}, names(d))
	assert.Equal(t, 4, d.Last)

	// The pending broadcast produced exactly one frame
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Error(t, err, "no duplicate delivery from cursor 0")
}

func TestWebSocketHandshakeTimeoutPushesFromZero(t *testing.T) {
	f := newTestFeed(t, func(c *Config) {
		c.HandshakeTimeout = 20 * time.Millisecond
	})
	f.log.Append(testRecords("Alice")...)

	conn := f.dial(t, "")
	f.waitListeners(t, 1)
	f.publish("Bob")

	d := receive(t, conn)
	assert.Equal(t, []string{"Alice", "Bob"}, names(d))
	assert.Equal(t, 2, d.Last)
}

func TestWebSocketQueryCursorSkipsHandshake(t *testing.T) {
	f := newTestFeed(t, func(c *Config) {
		c.HandshakeTimeout = time.Hour
	})
	f.log.Append(testRecords("Alice")...)

	conn := f.dial(t, "?last=1")
	f.waitListeners(t, 1)
	f.publish("Bob")

	d := receive(t, conn)
	assert.Equal(t, []string{"Bob"}, names(d))
	assert.Equal(t, 2, d.Last)
}
