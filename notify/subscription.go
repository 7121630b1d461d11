package notify

import "sync/atomic"

// Subscription is a persistent listener. It stays registered until Close.
type Subscription struct {
	n      *Notifier
	id     uint64
	ch     chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// Subscribe registers a persistent listener.
func (n *Notifier) Subscribe() *Subscription {
	s := &Subscription{
		n:  n,
		id: n.newID(),
		// One slot: pending wakeups coalesce since signals carry no data.
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	n.register(s.id, s.signal)
	return s
}

// signal performs a non-blocking send. The channel is never closed, so a
// broadcast racing with Close is harmless.
func (s *Subscription) signal(uint64) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- struct{}{}:
	default:
		// Wakeup already pending
	}
	return true
}

// C returns the channel that receives a value after each broadcast.
func (s *Subscription) C() <-chan struct{} {
	return s.ch
}

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the listener. It is idempotent.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.n.unregister(s.id)
	close(s.done)
}
