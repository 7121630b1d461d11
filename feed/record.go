package feed

import "fmt"

// Record is a single immutable feed entry.
type Record struct {
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// String renders the record the way clients display it.
func (r Record) String() string {
	return fmt.Sprintf("%s %s", r.Name, r.LastName)
}

// Delta is the unit transferred by every transport: the records appended
// since a cursor plus the cursor to use next.
type Delta struct {
	Users []Record `json:"users"`
	Last  int      `json:"last"`
}

// From returns the normalised cursor the delta was computed from.
func (d Delta) From() int {
	return d.Last - len(d.Users)
}

// Empty reports whether the delta carries no records.
func (d Delta) Empty() bool {
	return len(d.Users) == 0
}
