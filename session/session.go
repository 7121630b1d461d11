package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/transport"
	"github.com/rs/zerolog/log"
)

var (
	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session: closed")

	// ErrUnknownStrategy is returned for kinds outside the four strategies
	ErrUnknownStrategy = errors.New("session: unknown strategy")
)

const (
	DefaultName         = "default"
	DefaultServerURL    = "http://localhost:3000"
	DefaultWebSocketURL = "ws://localhost:2000/ws"
	DefaultPollInterval = 2 * time.Second
	DefaultRetryDelay   = time.Second
	DefaultReadLimit    = 16 << 20
)

// Options configures a Session. Zero values take the defaults above.
type Options struct {
	Name         string // Key under which state is stored
	ServerURL    string
	WebSocketURL string
	Store        Store // Defaults to a MemoryStore
	PollInterval time.Duration
	RetryDelay   time.Duration
	HTTPClient   *http.Client

	// ResumeCursor continues from the saved cursor after a reload. When
	// false a reloaded session starts from 0 and receives the whole log.
	ResumeCursor bool

	// OnDelta receives every delta in delivery order. It is called from
	// the strategy goroutine and must not call back into the session.
	OnDelta func(feed.Delta)
}

// Session runs at most one strategy at a time
type Session struct {
	opts  Options
	store Store
	env   *env

	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes strategy lifecycle changes
	mu     sync.Mutex
	active Strategy
	closed bool

	// stateMu guards the fields persisted to the store
	stateMu  sync.Mutex
	strategy string
	cursor   int
}

// New creates a session and restores its saved strategy, if any
func New(opts Options) (*Session, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.ServerURL == "" {
		opts.ServerURL = DefaultServerURL
	}
	if opts.WebSocketURL == "" {
		opts.WebSocketURL = DefaultWebSocketURL
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	saved, found, err := opts.Store.Load(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", opts.Name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:   opts,
		store:  opts.Store,
		ctx:    ctx,
		cancel: cancel,
	}
	s.env = &env{
		client:       opts.HTTPClient,
		serverURL:    opts.ServerURL,
		webSocketURL: opts.WebSocketURL,
		pollInterval: opts.PollInterval,
		retryDelay:   opts.RetryDelay,
		readLimit:    DefaultReadLimit,
		cursor:       s.Cursor,
		deliver:      s.deliver,
	}

	if !found {
		return s, nil
	}

	if saved.Version > StateVersion {
		log.Warn().
			Int("version", saved.Version).
			Str("session", opts.Name).
			Msg("Session state written by a newer version, reading known fields")
	}
	if opts.ResumeCursor && saved.Cursor > 0 {
		s.cursor = saved.Cursor
	}

	if saved.Strategy != "" {
		kind, err := transport.ParseKind(saved.Strategy)
		if err != nil {
			log.Warn().Err(err).Str("strategy", saved.Strategy).Msg("Ignoring saved strategy")
			return s, nil
		}
		if err := s.Switch(kind); err != nil {
			cancel()
			return nil, err
		}
	}

	return s, nil
}

// Switch stops the running strategy, waits for it to exit, then starts kind
// from the session cursor.
func (s *Session) Switch(kind transport.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownStrategy, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.switchLocked(kind)
}

// Toggle mirrors a strategy button: selecting the active strategy stops it,
// selecting another switches to it. It returns the strategy now active.
func (s *Session) Toggle(kind transport.Kind) (transport.Kind, error) {
	if !kind.Valid() {
		return s.Active(), fmt.Errorf("%w: %v", ErrUnknownStrategy, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.KindUnknown, ErrClosed
	}

	if s.active != nil && s.active.Kind() == kind {
		s.stopLocked()
		return transport.KindUnknown, nil
	}
	if err := s.switchLocked(kind); err != nil {
		return s.activeLocked(), err
	}
	return kind, nil
}

// Stop stops the running strategy and leaves the session idle
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.stopLocked()
	return nil
}

// switchLocked replaces the running strategy. Callers hold mu.
func (s *Session) switchLocked(kind transport.Kind) error {
	next, err := newStrategy(kind)
	if err != nil {
		return err
	}

	s.stopActive()
	s.active = next

	s.stateMu.Lock()
	s.strategy = kind.String()
	from := s.cursor
	s.saveLocked()
	s.stateMu.Unlock()

	log.Info().Str("strategy", kind.String()).Int("cursor", from).Msg("Strategy started")
	next.start(s.ctx, s.env)
	return nil
}

// stopLocked halts the running strategy and records the session as idle.
// Callers hold mu.
func (s *Session) stopLocked() {
	s.stopActive()

	s.stateMu.Lock()
	s.strategy = ""
	s.saveLocked()
	s.stateMu.Unlock()
}

// stopActive halts the running strategy. Callers hold mu.
func (s *Session) stopActive() {
	if s.active == nil {
		return
	}
	kind := s.active.Kind()
	s.active.stop()
	s.active = nil
	log.Debug().Str("strategy", kind.String()).Msg("Strategy stopped")
}

// Active returns the running strategy kind, or KindUnknown when idle
func (s *Session) Active() transport.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Session) activeLocked() transport.Kind {
	if s.active == nil {
		return transport.KindUnknown
	}
	return s.active.Kind()
}

// Cursor returns the number of records this session has consumed
func (s *Session) Cursor() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cursor
}

// State returns a snapshot of what is persisted
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return State{Version: StateVersion, Strategy: s.strategy, Cursor: s.cursor}
}

// Close stops the running strategy. The saved state keeps the strategy so
// that a new session with the same store resumes it. The store itself is
// not closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.stopActive()
	s.cancel()
	return nil
}

func (s *Session) deliver(d feed.Delta) {
	s.stateMu.Lock()
	s.cursor = d.Last
	s.saveLocked()
	s.stateMu.Unlock()

	if s.opts.OnDelta != nil {
		s.opts.OnDelta(d)
	}
}

// saveLocked persists current state. Callers hold stateMu.
func (s *Session) saveLocked() {
	state := State{Version: StateVersion, Strategy: s.strategy, Cursor: s.cursor}
	if err := s.store.Save(s.opts.Name, state); err != nil {
		log.Warn().Err(err).Str("session", s.opts.Name).Msg("Failed to save session state")
	}
}
