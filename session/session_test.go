package session

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/notify"
	"github.com/maxpert/feedwire/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

type feedServer struct {
	log      *feed.Log
	notifier *notify.Notifier
	server   *httptest.Server
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	f := &feedServer{log: feed.NewLog(), notifier: notify.NewNotifier()}

	h, err := transport.NewHandlers(transport.Config{Log: f.log, Notifier: f.notifier})
	require.NoError(t, err)

	router := chi.NewRouter()
	h.Routes(router)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	t.Cleanup(h.Shutdown)
	return f
}

func (f *feedServer) publish(names ...string) {
	for _, n := range names {
		f.log.Append(feed.Record{Name: n, LastName: "Test"})
	}
	f.notifier.Broadcast()
}

func (f *feedServer) waitListeners(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.notifier.Len() == n
	}, waitFor, 5*time.Millisecond, "expected %d listeners", n)
}

// recorder collects delivered record names
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) onDelta(d feed.Delta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range d.Users {
		r.names = append(r.names, u.Name)
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func (r *recorder) waitCount(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.snapshot()) >= n
	}, waitFor, 5*time.Millisecond, "expected %d records", n)
}

func (f *feedServer) options(rec *recorder, store Store) Options {
	return Options{
		ServerURL:    f.server.URL,
		WebSocketURL: "ws" + strings.TrimPrefix(f.server.URL, "http") + transport.PathWebSocket,
		Store:        store,
		PollInterval: 10 * time.Millisecond,
		RetryDelay:   10 * time.Millisecond,
		OnDelta:      rec.onDelta,
	}
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionDeliversWithEveryStrategy(t *testing.T) {
	for _, kind := range transport.Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFeedServer(t)
			rec := &recorder{}
			s := newSession(t, f.options(rec, nil))

			require.NoError(t, s.Switch(kind))
			assert.Equal(t, kind, s.Active())

			if kind != transport.IntervalPoll {
				f.waitListeners(t, 1)
			}
			f.publish("Alice", "Bob")

			rec.waitCount(t, 2)
			assert.Equal(t, []string{"Alice", "Bob"}, rec.snapshot())
			require.Eventually(t, func() bool { return s.Cursor() == 2 }, waitFor, 5*time.Millisecond)
		})
	}
}

func TestSwitchContinuesFromCursor(t *testing.T) {
	f := newFeedServer(t)
	f.log.Append(feed.Record{Name: "Alice", LastName: "Test"}, feed.Record{Name: "Bob", LastName: "Test"})

	rec := &recorder{}
	s := newSession(t, f.options(rec, nil))

	require.NoError(t, s.Switch(transport.IntervalPoll))
	rec.waitCount(t, 2)

	steps := []transport.Kind{transport.UniPush, transport.BidiPush, transport.BlockingPoll}
	want := []string{"Alice", "Bob"}
	for i, kind := range steps {
		// Drain the previous listener so the count below only sees the
		// new strategy; the cursor is kept while idle
		require.NoError(t, s.Stop())
		f.waitListeners(t, 0)
		require.NoError(t, s.Switch(kind))
		f.waitListeners(t, 1)

		name := string(rune('C' + i))
		f.publish(name)
		want = append(want, name)
		rec.waitCount(t, len(want))
	}

	assert.Equal(t, want, rec.snapshot(), "no record delivered twice across switches")
	assert.Equal(t, len(want), s.Cursor())
}

func TestToggle(t *testing.T) {
	f := newFeedServer(t)
	s := newSession(t, f.options(&recorder{}, nil))

	active, err := s.Toggle(transport.BlockingPoll)
	require.NoError(t, err)
	assert.Equal(t, transport.BlockingPoll, active)
	f.waitListeners(t, 1)

	active, err = s.Toggle(transport.BlockingPoll)
	require.NoError(t, err)
	assert.Equal(t, transport.KindUnknown, active)
	assert.Equal(t, transport.KindUnknown, s.Active())
	f.waitListeners(t, 0)

	active, err = s.Toggle(transport.UniPush)
	require.NoError(t, err)
	assert.Equal(t, transport.UniPush, active)
	f.waitListeners(t, 1)

	active, err = s.Toggle(transport.BidiPush)
	require.NoError(t, err)
	assert.Equal(t, transport.BidiPush, active)
	// The event stream was closed before the socket was opened
	f.waitListeners(t, 1)
}

func TestConcurrentTogglesStayConsistent(t *testing.T) {
	f := newFeedServer(t)
	s := newSession(t, f.options(&recorder{}, nil))

	// An even number of toggles of one strategy always ends idle
	const goroutines, perGoroutine = 8, 10
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, err := s.Toggle(transport.BlockingPoll)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, transport.KindUnknown, s.Active())
	assert.Empty(t, s.State().Strategy)
	f.waitListeners(t, 0)
}

func TestToggleErrors(t *testing.T) {
	f := newFeedServer(t)
	s := newSession(t, f.options(&recorder{}, nil))

	_, err := s.Toggle(transport.KindUnknown)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	require.NoError(t, s.Close())
	_, err = s.Toggle(transport.IntervalPoll)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDirectSwitchDeliversOnce(t *testing.T) {
	f := newFeedServer(t)
	f.log.Append(feed.Record{Name: "Alice", LastName: "Test"}, feed.Record{Name: "Bob", LastName: "Test"})

	rec := &recorder{}
	s := newSession(t, f.options(rec, nil))
	want := []string{"Alice", "Bob"}

	require.NoError(t, s.Switch(transport.UniPush))
	f.waitListeners(t, 1)
	f.publish("Carol")
	want = append(want, "Carol")
	rec.waitCount(t, len(want))

	// Push to poll without an intermediate Stop
	require.NoError(t, s.Switch(transport.IntervalPoll))
	f.publish("Dave")
	want = append(want, "Dave")
	rec.waitCount(t, len(want))
	f.waitListeners(t, 0)

	// Poll to push without an intermediate Stop
	require.NoError(t, s.Switch(transport.BidiPush))
	f.waitListeners(t, 1)
	f.publish("Eve")
	want = append(want, "Eve")
	rec.waitCount(t, len(want))

	// Give any duplicate delivery from the replaced strategies time to land
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, want, rec.snapshot())
	assert.Equal(t, len(want), s.Cursor())
}

func TestStopReleasesServerListener(t *testing.T) {
	f := newFeedServer(t)
	s := newSession(t, f.options(&recorder{}, nil))

	for _, kind := range []transport.Kind{transport.BlockingPoll, transport.UniPush, transport.BidiPush} {
		require.NoError(t, s.Switch(kind))
		f.waitListeners(t, 1)
		require.NoError(t, s.Stop())
		f.waitListeners(t, 0)
	}
	assert.Equal(t, transport.KindUnknown, s.Active())
	assert.Empty(t, s.State().Strategy)
}

func TestSwitchErrors(t *testing.T) {
	f := newFeedServer(t)
	s := newSession(t, f.options(&recorder{}, nil))

	assert.ErrorIs(t, s.Switch(transport.KindUnknown), ErrUnknownStrategy)
	assert.ErrorIs(t, s.Switch(transport.Kind(42)), ErrUnknownStrategy)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Switch(transport.IntervalPoll), ErrClosed)
	assert.ErrorIs(t, s.Stop(), ErrClosed)
}

func TestReloadRestoresStrategy(t *testing.T) {
	f := newFeedServer(t)
	store := NewMemoryStore()

	first := &recorder{}
	s, err := New(f.options(first, store))
	require.NoError(t, err)
	require.NoError(t, s.Switch(transport.UniPush))
	f.waitListeners(t, 1)
	f.publish("Alice")
	first.waitCount(t, 1)
	require.NoError(t, s.Close())
	f.waitListeners(t, 0)

	saved, found, err := store.Load(DefaultName)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, State{Version: StateVersion, Strategy: transport.UniPush.String(), Cursor: 1}, saved)

	t.Run("restarts from zero by default", func(t *testing.T) {
		rec := &recorder{}
		s := newSession(t, f.options(rec, store))
		assert.Equal(t, transport.UniPush, s.Active())
		assert.Equal(t, 0, s.Cursor())

		f.waitListeners(t, 1)
		f.publish("Bob")
		rec.waitCount(t, 2)
		assert.Equal(t, []string{"Alice", "Bob"}, rec.snapshot())
		require.NoError(t, s.Close())
		f.waitListeners(t, 0)
	})

	t.Run("resumes cursor when asked", func(t *testing.T) {
		rec := &recorder{}
		opts := f.options(rec, store)
		opts.ResumeCursor = true
		s := newSession(t, opts)
		assert.Equal(t, transport.UniPush, s.Active())
		assert.Equal(t, 2, s.Cursor())

		f.waitListeners(t, 1)
		f.publish("Carol")
		rec.waitCount(t, 1)
		assert.Equal(t, []string{"Carol"}, rec.snapshot())
	})
}

func TestReloadIgnoresUnknownStrategy(t *testing.T) {
	f := newFeedServer(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save(DefaultName, State{Version: StateVersion, Strategy: "carrier-pigeon", Cursor: 3}))

	s := newSession(t, f.options(&recorder{}, store))
	assert.Equal(t, transport.KindUnknown, s.Active())
}
