// Package server binds the feed endpoints to network listeners.
//
// The API listener serves the polling and event stream endpoints, the admin
// API and /metrics. WebSocket upgrades arriving on it are split off by cmux
// to a dedicated push server. An optional second listener accepts
// WebSocket connections on any path.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/feedwire/admin"
	"github.com/maxpert/feedwire/transport"
	"github.com/rs/zerolog/log"
	"github.com/soheilhy/cmux"
)

const readHeaderTimeout = 10 * time.Second

// Config holds configuration for the server
type Config struct {
	Address          string // API listener, host:port
	WebSocketAddress string // Dedicated WebSocket listener (empty = disabled)

	Transport      *transport.Handlers
	Admin          *admin.AdminHandlers            // Optional
	MetricsHandler http.Handler                    // Optional
	CORS           func(http.Handler) http.Handler // Optional
}

// Server owns the listeners and HTTP servers
type Server struct {
	config Config

	// baseCtx parents every request context; cancelling it releases
	// long-poll requests still waiting on shutdown
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mux        cmux.CMux
	listener   net.Listener
	wsListener net.Listener
	servers    []*http.Server
	stopping   atomic.Bool
	wg         sync.WaitGroup
}

// New creates a server. Call Start to bind listeners.
func New(config Config) (*Server, error) {
	if config.Transport == nil {
		return nil, errors.New("transport handlers are required")
	}
	if config.Address == "" {
		return nil, errors.New("listen address is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:     config,
		baseCtx:    ctx,
		cancelBase: cancel,
	}, nil
}

// Router returns the API handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.config.CORS != nil {
		r.Use(s.config.CORS)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Connected"))
	})

	s.config.Transport.Routes(r)

	if s.config.MetricsHandler != nil {
		r.Handle("/metrics", s.config.MetricsHandler)
		log.Info().Msg("Metrics endpoint enabled at /metrics")
	}
	if s.config.Admin != nil {
		admin.RegisterRoutes(r, s.config.Admin)
	}
	return r
}

func (s *Server) newHTTPServer(handler http.Handler) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	s.servers = append(s.servers, srv)
	return srv
}

func (s *Server) serve(name string, srv *http.Server, l net.Listener) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := srv.Serve(l)
		if err == nil || errors.Is(err, http.ErrServerClosed) || s.stopping.Load() {
			return
		}
		log.Error().Err(err).Str("server", name).Msg("HTTP server failed")
	}()
}

// Start binds the listeners and begins serving
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.listener = listener

	log.Info().Str("address", listener.Addr().String()).Msg("Starting feed server")

	// WebSocket upgrades on the API port go to the push server
	s.mux = cmux.New(listener)
	upgradeListener := s.mux.Match(cmux.HTTP1HeaderField("Upgrade", "websocket"))
	httpListener := s.mux.Match(cmux.Any())

	push := http.HandlerFunc(s.config.Transport.WebSocket)
	s.serve("api", s.newHTTPServer(s.Router()), httpListener)
	s.serve("push", s.newHTTPServer(push), upgradeListener)

	if s.config.WebSocketAddress != "" {
		wsListener, err := net.Listen("tcp", s.config.WebSocketAddress)
		if err != nil {
			s.stopping.Store(true)
			s.mux.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.config.WebSocketAddress, err)
		}
		s.wsListener = wsListener
		s.serve("websocket", s.newHTTPServer(push), wsListener)
		log.Info().Str("address", wsListener.Addr().String()).Msg("WebSocket listener started")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.mux.Serve(); err != nil && !s.stopping.Load() {
			log.Error().Err(err).Msg("cmux failed")
		}
	}()

	return nil
}

// Addr returns the bound API address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the bound dedicated WebSocket address, if any
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// Stop ends push connections and pending long-polls, then shuts the HTTP
// servers down within ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.stopping.Swap(true) {
		return nil
	}

	log.Info().Msg("Stopping feed server")
	s.config.Transport.Shutdown()
	s.cancelBase()

	var errs []error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.mux != nil {
		s.mux.Close()
	}

	s.wg.Wait()
	return errors.Join(errs...)
}
