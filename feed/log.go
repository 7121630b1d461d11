package feed

import (
	"sync"
	"sync/atomic"
)

// Log is an append-only, in-memory sequence of records indexed from 0.
// Positions never change once assigned and the length never decreases.
type Log struct {
	// writeMu serialises appends; readers never take it.
	writeMu sync.Mutex
	records []Record

	// visible is the prefix readers may observe. It is replaced only after
	// the appended records are fully stored.
	visible atomic.Pointer[[]Record]
}

// NewLog creates an empty log.
func NewLog() *Log {
	l := &Log{}
	empty := make([]Record, 0)
	l.visible.Store(&empty)
	return l
}

// Append adds records to the end of the log and returns the new length.
// It does not notify anyone; callers broadcast separately.
func (l *Log) Append(records ...Record) int {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if len(records) == 0 {
		return len(l.records)
	}

	l.records = append(l.records, records...)

	// Publish a header capped at the current length so a later append that
	// reuses the backing array is never visible through this snapshot.
	snapshot := l.records[:len(l.records):len(l.records)]
	l.visible.Store(&snapshot)

	return len(snapshot)
}

// Len returns the number of records visible to readers.
func (l *Log) Len() int {
	return len(*l.visible.Load())
}

// SliceFrom returns every record at a position >= cursor together with the
// current length. Cursors below zero read from the start; cursors past the
// end yield an empty delta.
func (l *Log) SliceFrom(cursor int) Delta {
	records := *l.visible.Load()
	length := len(records)

	cursor = Clamp(cursor, length)

	users := make([]Record, length-cursor)
	copy(users, records[cursor:])

	return Delta{Users: users, Last: length}
}

// Range calls fn for up to limit records starting at cursor, stopping early
// when fn returns false. It returns the position after the last record
// visited.
func (l *Log) Range(cursor, limit int, fn func(pos int, r Record) bool) int {
	records := *l.visible.Load()
	cursor = Clamp(cursor, len(records))

	end := len(records)
	if limit > 0 && cursor+limit < end {
		end = cursor + limit
	}

	for pos := cursor; pos < end; pos++ {
		if !fn(pos, records[pos]) {
			return pos + 1
		}
	}
	return end
}

// Clamp normalises a cursor into [0, length].
func Clamp(cursor, length int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > length {
		return length
	}
	return cursor
}
