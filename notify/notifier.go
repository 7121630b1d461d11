package notify

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// listener is a single registration in the notifier.
type listener struct {
	id uint64
	// since is the broadcast generation current at registration. Only
	// broadcasts with a larger generation reach the listener.
	since uint64
	// fire delivers a broadcast and reports whether it was accepted.
	fire func(gen uint64) bool
}

// Notifier broadcasts "state changed" to all registered listeners.
// Safe for concurrent use.
type Notifier struct {
	listeners *xsync.MapOf[uint64, *listener]
	nextID    atomic.Uint64
	gen       atomic.Uint64
}

// NewNotifier creates a notifier with no listeners.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: xsync.NewMapOf[uint64, *listener](),
	}
}

// Broadcast signals every listener registered before the call and returns
// how many accepted the signal.
func (n *Notifier) Broadcast() int {
	gen := n.gen.Add(1)

	delivered := 0
	n.listeners.Range(func(_ uint64, l *listener) bool {
		if l.since >= gen {
			// Registered after this broadcast started
			return true
		}
		if l.fire(gen) {
			delivered++
		}
		return true
	})
	return delivered
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	return n.listeners.Size()
}

// Generation returns the number of broadcasts issued so far.
func (n *Notifier) Generation() uint64 {
	return n.gen.Load()
}

// newID reserves a listener id. Handles take their id before registering:
// a broadcast may fire them as soon as they are stored.
func (n *Notifier) newID() uint64 {
	return n.nextID.Add(1)
}

func (n *Notifier) register(id uint64, fire func(gen uint64) bool) {
	n.listeners.Store(id, &listener{
		id:    id,
		since: n.gen.Load(),
		fire:  fire,
	})
}

func (n *Notifier) unregister(id uint64) bool {
	_, ok := n.listeners.LoadAndDelete(id)
	return ok
}
