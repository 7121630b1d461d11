// Package producer feeds new records into the log.
//
// A Source produces batches of records and hands them to a Sink. The
// Publisher is the Sink used in production: it appends the batch to the log
// and then broadcasts exactly once, so subscribers never observe a
// notification for records that are not yet readable.
//
// Sources are created by type through a factory registry. The random and
// none sources live here; message broker sources register themselves from
// the producer/source package:
//
//	import _ "github.com/maxpert/feedwire/producer/source"
package producer
