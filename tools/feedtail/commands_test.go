package main

import (
	"testing"
	"time"

	"github.com/maxpert/feedwire/transport"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input  string
		action action
		kind   transport.Kind
	}{
		{"short", actionToggle, transport.IntervalPoll},
		{" LONG ", actionToggle, transport.BlockingPoll},
		{"ws", actionToggle, transport.BidiPush},
		{"sse", actionToggle, transport.UniPush},
		{"serverSentEvent", actionToggle, transport.UniPush},
		{"stop", actionStop, transport.KindUnknown},
		{"status", actionStatus, transport.KindUnknown},
		{"?", actionHelp, transport.KindUnknown},
		{"quit", actionQuit, transport.KindUnknown},
		{"q", actionQuit, transport.KindUnknown},
	}

	for _, tt := range tests {
		cmd, err := parseCommand(tt.input)
		if err != nil {
			t.Errorf("parseCommand(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if cmd.action != tt.action || cmd.kind != tt.kind {
			t.Errorf("parseCommand(%q) = %+v, want action %d kind %v", tt.input, cmd, tt.action, tt.kind)
		}
	}

	if _, err := parseCommand("dance"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    "http://localhost:3000",
			WebSocket: "ws://localhost:2000/ws",
			Session:   "default",
			Interval:  time.Second,
		}
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.kind != transport.KindUnknown {
		t.Errorf("expected no strategy, got %v", cfg.kind)
	}

	cfg = valid()
	cfg.Strategy = "sse"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.kind != transport.UniPush {
		t.Errorf("expected UniPush, got %v", cfg.kind)
	}

	broken := []func(*Config){
		func(c *Config) { c.Server = "localhost" },
		func(c *Config) { c.WebSocket = "" },
		func(c *Config) { c.Strategy = "fax" },
		func(c *Config) { c.Interval = 0 },
		func(c *Config) { c.Session = "" },
	}
	for i, mutate := range broken {
		cfg := valid()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
