// Package notify provides the payload-free broadcast used to tell
// transports that the feed log grew.
//
// A broadcast carries no data. Every listener re-reads the log from its own
// cursor, so listeners with different cursors each compute their own delta.
//
// Two listener lifetimes are supported:
//
//   - Subscribe returns a persistent Subscription that stays registered
//     across broadcasts until Close. Signals coalesce: a slow reader sees
//     one pending wakeup, never a backlog.
//   - Once returns a Waiter, a future that resolves on the next broadcast
//     and unregisters itself. A Waiter can be cancelled, which also
//     unregisters it.
//
// A listener only observes broadcasts that start after it registered.
// Listeners may register and unregister while a broadcast is in progress.
package notify
