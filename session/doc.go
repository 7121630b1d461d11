// Package session is the client side of the feed. A Session keeps exactly
// one delivery strategy running against a feed server, tracks the cursor of
// the records it has consumed, and persists {strategy, cursor} through a
// Store so that the active strategy survives a restart.
//
// Switching strategies stops the running one (timer, in-flight request or
// connection) and waits for it to exit before the next one starts from the
// session cursor, so no delta is delivered twice across a switch.
package session
