package notify

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jizhuozhi/go-future"
)

// ErrCancelled is returned by a Waiter cancelled without a cause.
var ErrCancelled = errors.New("notify: waiter cancelled")

// Waiter is a one-shot listener: a future that resolves with the generation
// of the first broadcast after registration.
type Waiter struct {
	n       *Notifier
	id      uint64
	promise *future.Promise[uint64]
	fut     *future.Future[uint64]
	settled atomic.Bool
}

// Once registers a one-shot listener.
func (n *Notifier) Once() *Waiter {
	p := future.NewPromise[uint64]()
	w := &Waiter{
		n:       n,
		id:      n.newID(),
		promise: p,
		fut:     p.Future(),
	}
	n.register(w.id, w.resolve)
	return w
}

func (w *Waiter) resolve(gen uint64) bool {
	if !w.settled.CompareAndSwap(false, true) {
		return false
	}
	w.n.unregister(w.id)
	w.promise.Set(gen, nil)
	return true
}

// Cancel unregisters the waiter and fails its future with err, or with
// ErrCancelled when err is nil. It reports whether the waiter was still
// pending.
func (w *Waiter) Cancel(err error) bool {
	if !w.settled.CompareAndSwap(false, true) {
		return false
	}
	if err == nil {
		err = ErrCancelled
	}
	w.n.unregister(w.id)
	w.promise.Set(0, err)
	return true
}

// Future exposes the underlying future.
func (w *Waiter) Future() *future.Future[uint64] {
	return w.fut
}

// Wait blocks until the next broadcast or until ctx is done, in which case
// the waiter is cancelled with the context's cause.
func (w *Waiter) Wait(ctx context.Context) (uint64, error) {
	stop := context.AfterFunc(ctx, func() {
		w.Cancel(context.Cause(ctx))
	})
	defer stop()

	return w.fut.Get()
}
