// Package config loads the settings shared by the tracking backend and the tracker host:
// a YAML file for policy plus environment variables for connection details and identity.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// RealtimeMode selects where a tracker host receives fixture changes from.
type RealtimeMode string

const (
	RealtimeJetStream RealtimeMode = "jetstream"
	RealtimePostgres  RealtimeMode = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracking TrackingConfig `yaml:"tracking"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Backend  BackendConfig  `yaml:"backend"`
	Host     HostConfig     `yaml:"host"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Pretty switches to the console writer.
	Pretty bool `yaml:"pretty"`
}

type TrackingConfig struct {
	UndoWindow           time.Duration `yaml:"undo_window"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	MaxHeartbeatFailures int           `yaml:"max_heartbeat_failures"`
	// StaleClaimAfter lets another tracker take over a claim with no recent heartbeat.
	StaleClaimAfter time.Duration `yaml:"stale_claim_after"`
}

type RealtimeConfig struct {
	Mode    RealtimeMode `yaml:"mode"`
	NatsURL string       `yaml:"nats_url"`
	Stream  string       `yaml:"stream"`
	// RelayInterval is the backend's sweep for outbox rows NOTIFY missed.
	RelayInterval time.Duration `yaml:"relay_interval"`
}

type SnapshotConfig struct {
	Path                string        `yaml:"path"`
	OrphanSweepInterval time.Duration `yaml:"orphan_sweep_interval"`
}

type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HostConfig identifies who tracks which fixture on a tracker host.
type HostConfig struct {
	UserID    string    `yaml:"user_id"`
	FixtureID uuid.UUID `yaml:"fixture_id"`
}

// Default returns the configuration used when neither file nor environment say otherwise.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: "8080"},
		Logging: LoggingConfig{Level: "info", Pretty: true},
		Tracking: TrackingConfig{
			UndoWindow:        30 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			StaleClaimAfter:   2 * time.Minute,
		},
		Realtime: RealtimeConfig{
			Mode:          RealtimeJetStream,
			NatsURL:       "nats://localhost:4222",
			Stream:        "TRACKING_EVENTS",
			RelayInterval: 30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Path:                "data/match_snapshots.db",
			OrphanSweepInterval: 30 * time.Minute,
		},
		Backend: BackendConfig{
			URL:     "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads .env (when present), the YAML file at path (when present) and then environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Debug().Str("path", path).Msg("config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := Parse(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML over cfg, keeping fields the document leaves out.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Realtime.NatsURL = getEnv("NATS_URL", c.Realtime.NatsURL)
	c.Realtime.Mode = RealtimeMode(getEnv("REALTIME_MODE", string(c.Realtime.Mode)))
	c.Backend.URL = getEnv("TRACKING_BACKEND_URL", c.Backend.URL)
	c.Snapshot.Path = getEnv("SNAPSHOT_PATH", c.Snapshot.Path)
	c.Host.UserID = getEnv("USER_ID", c.Host.UserID)
	c.Tracking.MaxHeartbeatFailures = getEnvAsInt("MAX_HEARTBEAT_FAILURES", c.Tracking.MaxHeartbeatFailures)

	if v := os.Getenv("FIXTURE_ID"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid FIXTURE_ID %q: %w", v, err)
		}
		c.Host.FixtureID = id
	}
	return nil
}

// Validate checks settings both binaries rely on.
func (c *Config) Validate() error {
	switch c.Realtime.Mode {
	case RealtimeJetStream, RealtimePostgres:
	default:
		return fmt.Errorf("unknown realtime mode %q", c.Realtime.Mode)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	if c.Tracking.MaxHeartbeatFailures < 0 {
		return fmt.Errorf("max_heartbeat_failures must not be negative")
	}
	return nil
}

// ValidateHost checks the settings only a tracker host needs.
func (c *Config) ValidateHost() error {
	if c.Host.UserID == "" {
		return fmt.Errorf("USER_ID is required")
	}
	if c.Host.FixtureID == uuid.Nil {
		return fmt.Errorf("FIXTURE_ID is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
