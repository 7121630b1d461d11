package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/maxpert/feedwire/admin"
	"github.com/maxpert/feedwire/cfg"
	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/notify"
	"github.com/maxpert/feedwire/producer"
	_ "github.com/maxpert/feedwire/producer/source"
	"github.com/maxpert/feedwire/server"
	"github.com/maxpert/feedwire/telemetry"
	"github.com/maxpert/feedwire/transport"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Str("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("feedwire - incremental record feed")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	records := feed.NewLog()
	notifier := notify.NewNotifier()

	if cfg.Config.Prometheus.Enabled {
		interval := time.Duration(cfg.Config.Prometheus.CollectIntervalSeconds) * time.Second
		collector := telemetry.NewMetricsCollector(records, notifier, interval)
		collector.Start()
		defer collector.Stop()
	}

	srv, err := initializeServer(records, notifier)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
		return
	}
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
		return
	}

	// Producer starts after the server so early records reach connected clients
	publisher := producer.NewPublisher(records, notifier)
	worker, err := producer.NewWorkerFromConfig(cfg.Config.Producer, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize producer")
		return
	}
	worker.Start()

	log.Info().
		Str("source", string(cfg.Config.Producer.Source)).
		Int("http_port", cfg.Config.HTTP.Port).
		Int("websocket_port", cfg.Config.HTTP.WebSocketPort).
		Msg("feedwire is running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("Shutting down")

	worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Server did not stop cleanly")
	}
}

func initializeServer(records *feed.Log, notifier *notify.Notifier) (*server.Server, error) {
	handlers, err := transport.NewHandlers(transport.Config{
		Log:              records,
		Notifier:         notifier,
		LongPollTimeout:  time.Duration(cfg.Config.HTTP.LongPollTimeoutMS) * time.Millisecond,
		WriteTimeout:     time.Duration(cfg.Config.HTTP.WriteTimeoutMS) * time.Millisecond,
		HandshakeTimeout: time.Duration(cfg.Config.WebSocket.HandshakeTimeoutMS) * time.Millisecond,
		OriginPatterns:   cfg.Config.WebSocket.OriginPatterns,
		CacheEntries:     cfg.Config.Cache.DeltaEntries,
	})
	if err != nil {
		return nil, err
	}

	config := server.Config{
		Address:        net.JoinHostPort(cfg.Config.HTTP.BindAddress, strconv.Itoa(cfg.Config.HTTP.Port)),
		Transport:      handlers,
		Admin:          admin.NewAdminHandlers(records, notifier, cfg.Config.InstanceID),
		MetricsHandler: telemetry.GetMetricsHandler(),
	}

	if cfg.Config.HTTP.WebSocketPort > 0 {
		config.WebSocketAddress = net.JoinHostPort(cfg.Config.HTTP.BindAddress, strconv.Itoa(cfg.Config.HTTP.WebSocketPort))
	}

	if cfg.Config.CORS.Enabled {
		cors, err := transport.CORS(cfg.Config.CORS.AllowedOrigins)
		if err != nil {
			return nil, err
		}
		config.CORS = cors
	}

	return server.New(config)
}
