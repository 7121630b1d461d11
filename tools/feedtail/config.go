package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/maxpert/feedwire/transport"
)

type Config struct {
	// Endpoints
	Server    string
	WebSocket string

	// Session
	Strategy  string // Started on launch unless a saved strategy exists
	StatePath string // Pebble directory (empty = in-memory)
	Session   string
	Resume    bool

	Interval time.Duration
	Verbose  bool

	// Derived
	kind transport.Kind
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{"server": c.Server, "ws": c.WebSocket} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s url: %q", name, raw)
		}
	}

	if c.Strategy != "" {
		kind, err := transport.ParseKind(c.Strategy)
		if err != nil {
			return err
		}
		c.kind = kind
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Session == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	return nil
}
