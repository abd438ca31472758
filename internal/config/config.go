// Package config loads the tracker configuration from a YAML file, with
// DECKTRACKER_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override, e.g.
// DECKTRACKER_STORAGE_DRIVER for storage.driver.
const EnvPrefix = "DECKTRACKER"

// Config is the full tracker configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Cards       CardsConfig       `mapstructure:"cards"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Forwarder   ForwarderConfig   `mapstructure:"forwarder"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Replay      ReplayConfig      `mapstructure:"replay"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`

	v    *viper.Viper
	file string
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Output is a file path; empty logs to stderr.
	Output string `mapstructure:"output"`
	// Development makes DPanic logs panic.
	Development bool `mapstructure:"development"`
}

type PipelineConfig struct {
	RequireDecklist  bool   `mapstructure:"require_decklist"`
	NotificationMode string `mapstructure:"notification_mode"`
	DeckSize         int    `mapstructure:"deck_size"`
}

type CardsConfig struct {
	Path              string `mapstructure:"path"`
	SpecialRulesPath  string `mapstructure:"special_rules_path"`
	SecretsConfigPath string `mapstructure:"secrets_config_path"`
}

type TelemetryConfig struct {
	EventsLog    string        `mapstructure:"events_log"`
	DecksLog     string        `mapstructure:"decks_log"`
	Follow       bool          `mapstructure:"follow"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ForwarderConfig controls the external emitters. Enabled can be flipped
// while the tracker runs.
type ForwarderConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
}

type WebSocketConfig struct {
	Address         string `mapstructure:"address"`
	Path            string `mapstructure:"path"`
	AccessTokenHash string `mapstructure:"access_token_hash"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type DiagnosticsConfig struct {
	InspectAddress string `mapstructure:"inspect_address"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "")
	v.SetDefault("logging.development", false)

	v.SetDefault("pipeline.require_decklist", true)
	v.SetDefault("pipeline.notification_mode", "per-parser")
	v.SetDefault("pipeline.deck_size", 30)

	v.SetDefault("cards.path", "")
	v.SetDefault("cards.special_rules_path", "")
	v.SetDefault("cards.secrets_config_path", "")

	v.SetDefault("telemetry.events_log", "")
	v.SetDefault("telemetry.decks_log", "")
	v.SetDefault("telemetry.follow", true)
	v.SetDefault("telemetry.poll_interval", "100ms")

	v.SetDefault("forwarder.enabled", false)
	v.SetDefault("forwarder.websocket.address", "127.0.0.1:8765")
	v.SetDefault("forwarder.websocket.path", "/ws")
	v.SetDefault("forwarder.websocket.access_token_hash", "")
	v.SetDefault("forwarder.grpc.address", "")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "decktracker.db")
	v.SetDefault("storage.max_conns", 4)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "replays")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("diagnostics.inspect_address", "")
}

// Load reads path (optional: an empty or missing path yields defaults plus
// environment overrides) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := ""
	if path != "" {
		v.SetConfigFile(path)
		switch err := v.ReadInConfig(); {
		case err == nil:
			file = v.ConfigFileUsed()
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.v = v
	cfg.file = file
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	switch c.Pipeline.NotificationMode {
	case "per-parser", "per-event":
	default:
		return fmt.Errorf("invalid pipeline.notification_mode %q", c.Pipeline.NotificationMode)
	}
	switch c.Storage.Driver {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	if c.Pipeline.DeckSize < 0 {
		return fmt.Errorf("pipeline.deck_size must not be negative")
	}
	return nil
}

// File returns the configuration file in use, or "" when running on
// defaults.
func (c *Config) File() string {
	return c.file
}

// Watch re-reads the file whenever it changes and hands the new, valid
// configuration to onChange. Invalid edits are logged and ignored. Without a
// configuration file Watch does nothing.
func (c *Config) Watch(logger *zap.Logger, onChange func(*Config)) {
	if c.File() == "" {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(c.v)
		if err != nil {
			logger.Warn("ignoring invalid configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		next.v = c.v
		next.file = c.file
		logger.Info("configuration reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		onChange(next)
	})
	c.v.WatchConfig()
}
