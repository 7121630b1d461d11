package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// SourceType selects the producer feeding the record log
type SourceType string

const (
	SourceRandom SourceType = "random" // Built-in generator of random users
	SourceNATS   SourceType = "nats"   // Core NATS subject carrying JSON records
	SourceKafka  SourceType = "kafka"  // Kafka topic carrying JSON records
	SourceNone   SourceType = "none"   // No producer (records only via tests/admin tooling)
)

// HTTPConfiguration controls the feed listeners
type HTTPConfiguration struct {
	BindAddress       string `toml:"bind_address"`
	Port              int    `toml:"port"`                 // Polling, SSE, admin and metrics endpoints
	WebSocketPort     int    `toml:"websocket_port"`       // Dedicated WebSocket listener (0 = disabled)
	LongPollTimeoutMS int    `toml:"long_poll_timeout_ms"` // 0 = hold long-poll requests indefinitely
	WriteTimeoutMS    int    `toml:"write_timeout_ms"`     // Per-frame write deadline for push transports
}

// WebSocketConfiguration controls the bidirectional push transport
type WebSocketConfiguration struct {
	OriginPatterns     []string `toml:"origin_patterns"`      // Accepted Origin hosts (glob)
	HandshakeTimeoutMS int      `toml:"handshake_timeout_ms"` // Wait for the first cursor message when the URL has none
}

// CORSConfiguration controls cross-origin access to the HTTP endpoints
type CORSConfiguration struct {
	Enabled        bool     `toml:"enabled"`
	AllowedOrigins []string `toml:"allowed_origins"` // Glob patterns, e.g. "http://localhost:*"
}

// NATSConfiguration for the NATS producer source
type NATSConfiguration struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// KafkaConfiguration for the Kafka producer source
type KafkaConfiguration struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`
}

// ProducerConfiguration controls where new records come from
type ProducerConfiguration struct {
	Source          SourceType         `toml:"source"`
	MaxIntervalMS   int                `toml:"max_interval_ms"` // Random source: upper bound between records
	RetryInitialMS  int                `toml:"retry_initial_ms"`
	RetryMaxMS      int                `toml:"retry_max_ms"`
	RetryMultiplier float64            `toml:"retry_multiplier"`
	NATS            NATSConfiguration  `toml:"nats"`
	Kafka           KafkaConfiguration `toml:"kafka"`
}

// CacheConfiguration controls the encoded delta cache
type CacheConfiguration struct {
	DeltaEntries int `toml:"delta_entries"` // 0 = disabled
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled                bool `toml:"enabled"`
	CollectIntervalSeconds int  `toml:"collect_interval_seconds"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID string `toml:"instance_id"`

	HTTP       HTTPConfiguration       `toml:"http"`
	WebSocket  WebSocketConfiguration  `toml:"websocket"`
	CORS       CORSConfiguration       `toml:"cors"`
	Producer   ProducerConfiguration   `toml:"producer"`
	Cache      CacheConfiguration      `toml:"cache"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag    = flag.String("config", "feedwire.toml", "Path to configuration file")
	HTTPPortFlag      = flag.Int("http-port", 0, "HTTP port (overrides config)")
	WebSocketPortFlag = flag.Int("ws-port", -1, "WebSocket port (overrides config, 0=disabled)")
	SourceFlag        = flag.String("source", "", "Producer source: random|nats|kafka|none (overrides config)")
)

// Default configuration
var Config = Default()

// Default returns the built-in configuration
func Default() *Configuration {
	return &Configuration{
		HTTP: HTTPConfiguration{
			BindAddress:       "0.0.0.0",
			Port:              3000,
			WebSocketPort:     2000,
			LongPollTimeoutMS: 0,
			WriteTimeoutMS:    5000,
		},

		WebSocket: WebSocketConfiguration{
			OriginPatterns:     []string{"localhost:*", "127.0.0.1:*"},
			HandshakeTimeoutMS: 1000,
		},

		CORS: CORSConfiguration{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
		},

		Producer: ProducerConfiguration{
			Source:          SourceRandom,
			MaxIntervalMS:   2000,
			RetryInitialMS:  100,
			RetryMaxMS:      30000,
			RetryMultiplier: 2.0,
			NATS: NATSConfiguration{
				URL:     "nats://127.0.0.1:4222",
				Subject: "feedwire.users",
			},
			Kafka: KafkaConfiguration{
				Topic:   "feedwire.users",
				GroupID: "feedwire",
			},
		},

		Cache: CacheConfiguration{
			DeltaEntries: 1024,
		},

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},

		Prometheus: PrometheusConfiguration{
			Enabled:                true,
			CollectIntervalSeconds: 5,
		},
	}
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	// Apply CLI overrides
	if *HTTPPortFlag != 0 {
		Config.HTTP.Port = *HTTPPortFlag
	}
	if *WebSocketPortFlag >= 0 {
		Config.HTTP.WebSocketPort = *WebSocketPortFlag
	}
	if *SourceFlag != "" {
		Config.Producer.Source = SourceType(*SourceFlag)
	}

	// Auto-generate instance ID if not set
	if Config.InstanceID == "" {
		id, err := generateInstanceID()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to derive instance ID from machine ID, falling back to hostname")
			id, _ = os.Hostname()
		}
		Config.InstanceID = id
		log.Info().Str("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	return nil
}

// generateInstanceID derives a stable ID from the machine ID
func generateInstanceID() (string, error) {
	id, err := machineid.ProtectedID("feedwire")
	if err != nil {
		return "", err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// Validate checks configuration for errors
func Validate() error {
	if Config.HTTP.Port < 1 || Config.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", Config.HTTP.Port)
	}

	if Config.HTTP.WebSocketPort < 0 || Config.HTTP.WebSocketPort > 65535 {
		return fmt.Errorf("invalid WebSocket port: %d", Config.HTTP.WebSocketPort)
	}

	if Config.HTTP.WebSocketPort == Config.HTTP.Port {
		return fmt.Errorf("websocket port must differ from HTTP port (upgrades on the HTTP port are already served)")
	}

	if Config.HTTP.LongPollTimeoutMS < 0 {
		return fmt.Errorf("long-poll timeout must be >= 0")
	}

	if Config.HTTP.WriteTimeoutMS < 1 {
		return fmt.Errorf("push write timeout must be >= 1ms")
	}

	if Config.WebSocket.HandshakeTimeoutMS < 1 {
		return fmt.Errorf("websocket handshake timeout must be >= 1ms")
	}

	if Config.Cache.DeltaEntries < 0 {
		return fmt.Errorf("delta cache entries must be >= 0")
	}

	switch Config.Producer.Source {
	case SourceRandom:
		if Config.Producer.MaxIntervalMS < 1 {
			return fmt.Errorf("random source max interval must be >= 1ms")
		}
	case SourceNATS:
		if Config.Producer.NATS.URL == "" || Config.Producer.NATS.Subject == "" {
			return fmt.Errorf("nats source requires url and subject")
		}
	case SourceKafka:
		if len(Config.Producer.Kafka.Brokers) == 0 || Config.Producer.Kafka.Topic == "" {
			return fmt.Errorf("kafka source requires brokers and topic")
		}
	case SourceNone:
	default:
		return fmt.Errorf("invalid producer source: %s", Config.Producer.Source)
	}

	if Config.Producer.RetryInitialMS < 0 || Config.Producer.RetryMaxMS < 0 {
		return fmt.Errorf("producer retry delays must be >= 0")
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	if Config.Prometheus.Enabled && Config.Prometheus.CollectIntervalSeconds < 1 {
		return fmt.Errorf("prometheus collect interval must be >= 1 second")
	}

	return nil
}
