package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a strategy name cannot be parsed.
var ErrUnknownKind = errors.New("transport: unknown kind")

// Kind identifies one of the four delivery strategies.
type Kind uint8

const (
	KindUnknown Kind = iota
	IntervalPoll
	BlockingPoll
	BidiPush
	UniPush
)

// Endpoint paths and query parameters, fixed by the client contract.
const (
	PathIntervalPoll     = "/short-poling"
	PathBlockingPoll     = "/long-poling"
	PathServerSentEvents = "/server-sent-event"
	PathWebSocket        = "/ws"

	CursorParam = "last"
)

var kindNames = map[Kind]string{
	IntervalPoll: "shortPoling",
	BlockingPoll: "longPoling",
	BidiPush:     "websocket",
	UniPush:      "serverSentEvent",
}

var kindAliases = map[string]Kind{
	"shortpoling":     IntervalPoll,
	"short":           IntervalPoll,
	"interval":        IntervalPoll,
	"longpoling":      BlockingPoll,
	"long":            BlockingPoll,
	"blocking":        BlockingPoll,
	"websocket":       BidiPush,
	"ws":              BidiPush,
	"serversentevent": UniPush,
	"sse":             UniPush,
}

// Kinds returns every strategy in declaration order.
func Kinds() []Kind {
	return []Kind{IntervalPoll, BlockingPoll, BidiPush, UniPush}
}

// String returns the strategy name used by clients.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the four strategies.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Path returns the endpoint path serving the strategy.
func (k Kind) Path() string {
	switch k {
	case IntervalPoll:
		return PathIntervalPoll
	case BlockingPoll:
		return PathBlockingPoll
	case UniPush:
		return PathServerSentEvents
	case BidiPush:
		return PathWebSocket
	}
	return ""
}

// ParseKind parses a strategy name or one of its short aliases.
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(s)))
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
