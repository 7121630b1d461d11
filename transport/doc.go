// Package transport implements the server side of the four delivery
// strategies. Each one answers the same question, "what changed since
// cursor C", over a different connection shape:
//
//	IntervalPoll  GET /short-poling?last=C      immediate {users, last}
//	BlockingPoll  GET /long-poling?last=C       held until the next broadcast
//	UniPush       GET /server-sent-event?last=C  one SSE frame per broadcast
//	BidiPush      WebSocket                     client sends {lastUserIndex},
//	                                            server pushes {users, last}
//
// Every adapter that registers a notifier listener releases it with a
// deferred Close/Cancel, so a dropped connection never leaks a listener.
package transport
