package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ScenarioBrawliseum is the tavern brawl scenario that plays with standard
// secrets.
const ScenarioBrawliseum = 2902

// ModeSecrets lists the secrets available in one game mode.
type ModeSecrets struct {
	Mode    string        `yaml:"mode" json:"mode"`
	Secrets []SecretEntry `yaml:"secrets" json:"secrets"`
}

// SecretEntry is one secret card and the class that can play it.
type SecretEntry struct {
	CardID      string `yaml:"cardId" json:"cardId"`
	PlayerClass string `yaml:"playerClass" json:"playerClass"`
}

// SecretConfig resolves the candidate cards of a hidden secret.
type SecretConfig struct {
	modes  map[string][]SecretEntry
	logger *zap.Logger
}

// NewSecretConfig indexes the given mode lists.
func NewSecretConfig(configs []ModeSecrets, logger *zap.Logger) *SecretConfig {
	if logger == nil {
		logger = zap.NewNop()
	}
	modes := make(map[string][]SecretEntry, len(configs))
	for _, c := range configs {
		modes[c.Mode] = c.Secrets
	}
	return &SecretConfig{modes: modes, logger: logger}
}

// LoadSecretConfig reads a YAML or JSON list of mode configurations.
func LoadSecretConfig(path string, logger *zap.Logger) (*SecretConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets config: %w", err)
	}
	var configs []ModeSecrets
	if err := yaml.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("decode secrets config %s: %w", path, err)
	}
	return NewSecretConfig(configs, logger), nil
}

// ValidSecrets returns the secret card ids playerClass can have in the mode
// of the match. It returns nil while no configuration is loaded.
func (c *SecretConfig) ValidSecrets(md gamestate.Metadata, playerClass string) []string {
	if c == nil || len(c.modes) == 0 {
		c.warnEmpty(md, playerClass)
		return nil
	}
	mode := Mode(md)
	var out []string
	for _, s := range c.modes[mode] {
		if strings.EqualFold(s.PlayerClass, playerClass) {
			out = append(out, s.CardID)
		}
	}
	c.logger.Debug("resolved valid secrets",
		zap.String("mode", mode),
		zap.String("player_class", playerClass),
		zap.Strings("secrets", out),
	)
	return out
}

// Options wraps ValidSecrets as still-possible secret options.
func (c *SecretConfig) Options(md gamestate.Metadata, playerClass string) []gamestate.SecretOption {
	ids := c.ValidSecrets(md, playerClass)
	if ids == nil {
		return nil
	}
	out := make([]gamestate.SecretOption, len(ids))
	for i, id := range ids {
		out[i] = gamestate.SecretOption{CardID: id, IsValidOption: true}
	}
	return out
}

func (c *SecretConfig) warnEmpty(md gamestate.Metadata, playerClass string) {
	if c == nil {
		return
	}
	c.logger.Warn("secrets config not loaded",
		zap.Int("game_type", md.GameType),
		zap.String("player_class", playerClass),
	)
}

// Mode maps match metadata to the secrets config mode.
func Mode(md gamestate.Metadata) string {
	switch md.GameType {
	case gamestate.GameTypeArena:
		return "arena"
	case gamestate.GameTypeDuels, gamestate.GameTypeDuelsPaid:
		return "duels"
	case gamestate.GameTypeTavernBrawl,
		gamestate.GameTypeFSGBrawl,
		gamestate.GameTypeFSGBrawlOnePlayerVsAI,
		gamestate.GameTypeFSGBrawlTwoPlayerCoop,
		gamestate.GameTypeFSGBrawlVsFriend,
		gamestate.GameTypeTBOnePlayerVsAI,
		gamestate.GameTypeTBTwoPlayerCoop:
		if md.ScenarioID == ScenarioBrawliseum {
			return "standard"
		}
	case gamestate.GameTypeCasual, gamestate.GameTypeRanked, gamestate.GameTypeVsFriend, gamestate.GameTypeVsAI:
		switch md.FormatType {
		case gamestate.FormatStandard:
			return "standard"
		case gamestate.FormatClassic:
			return "classic"
		default:
			return "wild"
		}
	}
	return gamestate.FormatName(md.FormatType)
}
