package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/session"
	"github.com/maxpert/feedwire/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := &Config{}
	fs := flag.NewFlagSet("feedtail", flag.ExitOnError)
	fs.Usage = printUsage

	fs.StringVar(&cfg.Server, "server", session.DefaultServerURL, "Feed server base URL")
	fs.StringVar(&cfg.WebSocket, "ws", session.DefaultWebSocketURL, "WebSocket URL")
	fs.StringVar(&cfg.Strategy, "strategy", "", "Strategy to start: short|long|ws|sse")
	fs.StringVar(&cfg.StatePath, "state", "", "Directory for persisted session state (empty = in-memory)")
	fs.StringVar(&cfg.Session, "session", session.DefaultName, "Session name")
	fs.BoolVar(&cfg.Resume, "resume", false, "Resume from the saved cursor instead of 0")
	fs.DurationVar(&cfg.Interval, "interval", session.DefaultPollInterval, "Interval polling period")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug logging")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger().Level(level)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "feedtail: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `feedtail - follow a feedwire server from the terminal

Usage:
  feedtail [options]

Options:
  --server    Feed server base URL (default: `+session.DefaultServerURL+`)
  --ws        WebSocket URL (default: `+session.DefaultWebSocketURL+`)
  --strategy  Strategy to start: short|long|ws|sse
  --state     Directory for persisted session state (default: in-memory)
  --session   Session name (default: default)
  --resume    Resume from the saved cursor instead of 0
  --interval  Interval polling period (default: 2s)
  --verbose   Debug logging

`+commandHelp)
}

func run(cfg *Config) error {
	var store session.Store = session.NewMemoryStore()
	if cfg.StatePath != "" {
		pebbleStore, err := session.OpenPebbleStore(cfg.StatePath)
		if err != nil {
			return err
		}
		store = pebbleStore
	}
	defer store.Close()

	out := bufio.NewWriter(os.Stdout)
	printer := make(chan feed.Delta, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for d := range printer {
			for _, r := range d.Users {
				fmt.Fprintln(out, r.String())
			}
			out.Flush()
		}
	}()

	s, err := session.New(session.Options{
		Name:         cfg.Session,
		ServerURL:    cfg.Server,
		WebSocketURL: cfg.WebSocket,
		Store:        store,
		PollInterval: cfg.Interval,
		ResumeCursor: cfg.Resume,
		OnDelta:      func(d feed.Delta) { printer <- d },
	})
	if err != nil {
		close(printer)
		return err
	}

	if s.Active() == transport.KindUnknown && cfg.kind.Valid() {
		if err := s.Switch(cfg.kind); err != nil {
			s.Close()
			close(printer)
			return err
		}
	}
	reportState(s)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-sig:
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if line == "" {
				continue
			}
			if quit := handle(s, line); quit {
				break loop
			}
		}
	}

	err = s.Close()
	close(printer)
	select {
	case <-printed:
	case <-time.After(time.Second):
	}
	return err
}

// handle executes one command and reports whether to exit
func handle(s *session.Session, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	switch cmd.action {
	case actionQuit:
		return true
	case actionHelp:
		fmt.Fprintln(os.Stderr, commandHelp)
	case actionStatus:
		reportState(s)
	case actionStop:
		if err := s.Stop(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		reportState(s)
	case actionToggle:
		if _, err := s.Toggle(cmd.kind); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		reportState(s)
	}
	return false
}

func reportState(s *session.Session) {
	state := s.State()
	strategy := state.Strategy
	if strategy == "" {
		strategy = "idle"
	}
	fmt.Fprintf(os.Stderr, "[%s] cursor=%d\n", strategy, state.Cursor)
}
