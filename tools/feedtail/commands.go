package main

import (
	"fmt"
	"strings"

	"github.com/maxpert/feedwire/transport"
)

type action int

const (
	actionToggle action = iota
	actionStop
	actionStatus
	actionHelp
	actionQuit
)

type command struct {
	action action
	kind   transport.Kind
}

// parseCommand reads one stdin line. Strategy names work like the buttons
// of a browser client: picking the running strategy stops it.
func parseCommand(line string) (command, error) {
	word := strings.ToLower(strings.TrimSpace(line))
	switch word {
	case "stop":
		return command{action: actionStop}, nil
	case "status", "state":
		return command{action: actionStatus}, nil
	case "help", "?":
		return command{action: actionHelp}, nil
	case "quit", "exit", "q":
		return command{action: actionQuit}, nil
	}

	kind, err := transport.ParseKind(word)
	if err != nil {
		return command{}, fmt.Errorf("unknown command %q (try help)", word)
	}
	return command{action: actionToggle, kind: kind}, nil
}

const commandHelp = `Commands:
  short | long | ws | sse   Toggle a strategy (selecting the active one stops it)
  stop                      Stop the active strategy
  status                    Show strategy and cursor
  quit                      Exit, keeping the strategy for the next launch`
