// Package repository persists match summaries, diagnostic reports and the
// reference card catalogue. PostgreSQL and SQLite backends share one
// interface.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by Open when storage is disabled.
var ErrNotConfigured = errors.New("storage is not configured")

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes a backend.
type Config struct {
	Driver   string
	DSN      string
	MaxConns int
}

// MatchRecord summarizes one finished match.
type MatchRecord struct {
	ID                  string    `json:"id"`
	EndedAt             time.Time `json:"endedAt"`
	GameType            int       `json:"gameType"`
	FormatType          int       `json:"formatType"`
	ScenarioID          int       `json:"scenarioId"`
	DeckName            string    `json:"deckName,omitempty"`
	DeckString          string    `json:"deckstring,omitempty"`
	PlayerClass         string    `json:"playerClass,omitempty"`
	Turns               int       `json:"turns"`
	PlayerCardsPlayed   int       `json:"playerCardsPlayed"`
	OpponentCardsPlayed int       `json:"opponentCardsPlayed"`
}

// Store is implemented by every backend.
type Store interface {
	SaveMatch(ctx context.Context, match MatchRecord) error
	ListMatches(ctx context.Context, limit int) ([]MatchRecord, error)
	SaveReport(ctx context.Context, report diagnostics.Report) error
	ListReports(ctx context.Context, kind string, limit int) ([]diagnostics.Report, error)
	ImportCards(ctx context.Context, cards []cards.Card) (int, error)
	LoadCards(ctx context.Context) ([]cards.Card, error)
	Close() error
}

// Open connects to the configured backend and creates its schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", DriverNone:
		return nil, ErrNotConfigured
	case DriverSQLite:
		store, err := OpenSQLite(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		store, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
