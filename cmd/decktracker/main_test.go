package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/firestone-hs/decktracker/internal/config"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func testConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\nstorage:\n  driver: none\n"), 0o644))
	return path
}

func TestInitLogger(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "console"},
		{Level: "unknown"},
	} {
		logger, err := initLogger(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestInitLoggerOutputAndDevelopment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decktracker.log")
	logger, err := initLogger(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("match started", zap.String("deck_name", "Face Hunter"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"match started"`)
	assert.Contains(t, string(data), `"service":"decktracker"`)
	assert.NotContains(t, string(data), "hidden")

	dev, err := initLogger(config.LoggingConfig{Level: "debug", Output: filepath.Join(t.TempDir(), "dev.log"), Development: true})
	require.NoError(t, err)
	assert.Panics(t, func() { dev.DPanic("zones out of sync") })
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "decktracker version dev")
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema", "notification")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, out, "playerDeck")
	assert.Contains(t, out, "dynamicZones")

	_, err = execute(t, "schema", "nope")
	assert.Error(t, err)
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	local := gameevent.PlayerInfo{PlayerID: 1, CardID: "HERO_05"}
	opponent := gameevent.PlayerInfo{PlayerID: 2, CardID: "HERO_08"}
	r := replay.New("match-42")
	r.Record(gameevent.New(gameevent.GameStart, "", 0, 0).WithPlayers(local, opponent))
	r.Record(gameevent.New(gameevent.TurnStart, "", 0, 0).WithPlayers(local, opponent).WithData("turnNumber", 3))
	r.Record(gameevent.New(gameevent.GameEnd, "", 0, 0).WithPlayers(local, opponent))
	file, err := r.SaveToFile(dir)
	require.NoError(t, err)

	out, err := execute(t, "replay", "--config", testConfig(t), "--quiet", "--json", file)
	require.NoError(t, err)

	var summary struct {
		MatchID string `json:"matchId"`
		Events  int    `json:"events"`
		State   struct {
			GameStarted bool `json:"gameStarted"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "match-42", summary.MatchID)
	assert.Equal(t, 3, summary.Events)
	assert.True(t, summary.State.GameStarted)
}

func TestImportCardsNeedsStore(t *testing.T) {
	_, err := execute(t, "import-cards", "--config", testConfig(t), filepath.Join(t.TempDir(), "cards.json"))
	assert.Error(t, err)
}
