package session

// StateVersion is the current layout of State
const StateVersion = 1

// State is the persisted form of a session
type State struct {
	Version  int    `json:"version"`
	Strategy string `json:"strategy"` // transport.Kind name, empty when idle
	Cursor   int    `json:"cursor"`
}
