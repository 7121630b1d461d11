package session

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Store persists session state by session name
type Store interface {
	// Load returns the saved state and whether one existed
	Load(name string) (State, bool, error)
	Save(name string, state State) error
	Close() error
}

// MemoryStore keeps state for the lifetime of the process
type MemoryStore struct {
	states *xsync.MapOf[string, State]
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: xsync.NewMapOf[string, State]()}
}

func (m *MemoryStore) Load(name string) (State, bool, error) {
	s, ok := m.states.Load(name)
	return s, ok, nil
}

func (m *MemoryStore) Save(name string, state State) error {
	m.states.Store(name, state)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
