// Package feed holds the append-only record log that every transport reads
// from.
//
// The log is the single source of truth. Producers append to it and then
// broadcast through a notify.Notifier; transports never receive records
// from the broadcast itself; they re-read the log from their own cursor:
//
//	log := feed.NewLog()
//	log.Append(feed.Record{Name: "Alice", LastName: "Smith"})
//
//	delta := log.SliceFrom(0) // {Users: [Alice Smith], Last: 1}
//
// # Cursors
//
// A cursor is the number of records a subscriber has already consumed.
// SliceFrom clamps cursors into [0, Len()] because they arrive from
// untrusted client input, so it never fails.
//
// # Thread Safety
//
// Append may be called from several producers; it serialises writers with a
// mutex. Readers take no lock: the visible prefix is published through an
// atomic pointer only after the new records are stored.
package feed
