package session

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/maxpert/feedwire/encoding"
	"github.com/rs/zerolog/log"
)

const pebbleSessionPrefix = "/session/"

var errStoreClosed = errors.New("session store closed")

// PebbleStore persists session state in a local Pebble database
type PebbleStore struct {
	db     *pebble.DB
	path   string
	closed atomic.Bool
}

// pebbleLogger routes Pebble's logging through zerolog
type pebbleLogger struct{}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debug().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Error().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatal().Msgf("[pebble] "+format, args...)
}

// OpenPebbleStore opens (or creates) the store at path
func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{
		Logger: &pebbleLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	return &PebbleStore{db: db, path: path}, nil
}

func sessionKey(name string) []byte {
	return []byte(pebbleSessionPrefix + name)
}

func (s *PebbleStore) Load(name string) (State, bool, error) {
	if s.closed.Load() {
		return State{}, false, errStoreClosed
	}

	val, closer, err := s.db.Get(sessionKey(name))
	if err == pebble.ErrNotFound {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("failed to read session %q: %w", name, err)
	}
	defer closer.Close()

	var state State
	if err := encoding.Unmarshal(val, &state); err != nil {
		return State{}, false, fmt.Errorf("failed to decode session %q: %w", name, err)
	}
	return state, true, nil
}

func (s *PebbleStore) Save(name string, state State) error {
	if s.closed.Load() {
		return errStoreClosed
	}

	data, err := encoding.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %q: %w", name, err)
	}
	if err := s.db.Set(sessionKey(name), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write session %q: %w", name, err)
	}
	return nil
}

// Close flushes and closes the database. It is idempotent.
func (s *PebbleStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
