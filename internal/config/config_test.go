package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Empty(t, cfg.Logging.Output)
	assert.False(t, cfg.Logging.Development)
	assert.True(t, cfg.Pipeline.RequireDecklist)
	assert.Equal(t, "per-parser", cfg.Pipeline.NotificationMode)
	assert.Equal(t, 30, cfg.Pipeline.DeckSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Telemetry.PollInterval)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.False(t, cfg.Forwarder.Enabled)
	assert.Equal(t, "/ws", cfg.Forwarder.WebSocket.Path)
	assert.Empty(t, cfg.File())

	// a missing file is not an error
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.File())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
logging:
  level: debug
  format: json
  development: true
pipeline:
  notification_mode: per-event
  require_decklist: false
telemetry:
  events_log: /logs/events.jsonl
  poll_interval: 250ms
forwarder:
  enabled: true
  websocket:
    access_token_hash: "$2a$04$abc"
storage:
  driver: postgres
`)
	t.Setenv("DECKTRACKER_STORAGE_DSN", "postgres://localhost/decktracker")
	t.Setenv("DECKTRACKER_CARDS_PATH", "/data/cards.json")
	t.Setenv("DECKTRACKER_LOGGING_OUTPUT", "/var/log/decktracker.log")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "/var/log/decktracker.log", cfg.Logging.Output)
	assert.Equal(t, "per-event", cfg.Pipeline.NotificationMode)
	assert.False(t, cfg.Pipeline.RequireDecklist)
	assert.Equal(t, "/logs/events.jsonl", cfg.Telemetry.EventsLog)
	assert.Equal(t, 250*time.Millisecond, cfg.Telemetry.PollInterval)
	assert.True(t, cfg.Forwarder.Enabled)
	assert.Equal(t, "$2a$04$abc", cfg.Forwarder.WebSocket.AccessTokenHash)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/decktracker", cfg.Storage.DSN)
	assert.Equal(t, "/data/cards.json", cfg.Cards.Path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	for _, content := range []string{
		"logging:\n  level: loud\n",
		"logging:\n  format: xml\n",
		"pipeline:\n  notification_mode: sometimes\n",
		"storage:\n  driver: mysql\n",
		"pipeline:\n  deck_size: -1\n",
		"logging: [unclosed\n",
	} {
		_, err := Load(writeConfig(t, dir, content))
		assert.Error(t, err, content)
	}
}

func TestWatchReappliesForwarderFlag(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "forwarder:\n  enabled: false\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	changes := make(chan *Config, 4)
	// the watcher outlives the test, so it must not log through t
	cfg.Watch(zap.NewNop(), func(next *Config) {
		select {
		case changes <- next:
		default:
		}
	})

	// give fsnotify time to install the watch
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("forwarder:\n  enabled: true\n"), 0o644))

	// the truncate and the write can surface as separate events
	deadline := time.After(5 * time.Second)
	for {
		select {
		case next := <-changes:
			if !next.Forwarder.Enabled {
				continue
			}
			assert.Equal(t, path, next.File())
			return
		case <-deadline:
			t.Fatal("configuration change not observed")
		}
	}
}
