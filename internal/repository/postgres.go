package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
	   id TEXT PRIMARY KEY,
	   ended_at TIMESTAMPTZ NOT NULL,
	   game_type INTEGER NOT NULL,
	   format_type INTEGER NOT NULL,
	   scenario_id INTEGER NOT NULL,
	   deck_name TEXT NOT NULL DEFAULT '',
	   deckstring TEXT NOT NULL DEFAULT '',
	   player_class TEXT NOT NULL DEFAULT '',
	   turns INTEGER NOT NULL,
	   player_cards_played INTEGER NOT NULL,
	   opponent_cards_played INTEGER NOT NULL
	 )`,
	`CREATE TABLE IF NOT EXISTS reports (
	   id TEXT PRIMARY KEY,
	   kind TEXT NOT NULL,
	   message TEXT NOT NULL,
	   created_at TIMESTAMPTZ NOT NULL,
	   data JSONB NOT NULL DEFAULT '{}'
	 )`,
	`CREATE INDEX IF NOT EXISTS reports_kind_idx ON reports (kind, created_at)`,
	`CREATE TABLE IF NOT EXISTS cards (
	   id TEXT PRIMARY KEY,
	   dbf_id INTEGER NOT NULL,
	   name TEXT NOT NULL,
	   cost INTEGER NOT NULL,
	   rarity TEXT NOT NULL DEFAULT '',
	   type TEXT NOT NULL DEFAULT '',
	   race TEXT NOT NULL DEFAULT '',
	   player_class TEXT NOT NULL DEFAULT '',
	   card_set TEXT NOT NULL DEFAULT '',
	   mechanics JSONB NOT NULL DEFAULT '[]'
	 )`,
}

// PostgresStore is the shared, server-side store.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects a pool and creates the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	stats := pool.Stat()
	logger.Info("postgres store opened",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("max_conns", stats.MaxConns()),
	)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// SaveMatch upserts a match summary.
func (s *PostgresStore) SaveMatch(ctx context.Context, m MatchRecord) error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (
		   id, ended_at, game_type, format_type, scenario_id, deck_name, deckstring,
		   player_class, turns, player_cards_played, opponent_cards_played
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   ended_at = EXCLUDED.ended_at,
		   turns = EXCLUDED.turns,
		   player_cards_played = EXCLUDED.player_cards_played,
		   opponent_cards_played = EXCLUDED.opponent_cards_played`,
		m.ID, m.EndedAt.UTC(), m.GameType, m.FormatType, m.ScenarioID, m.DeckName, m.DeckString,
		m.PlayerClass, m.Turns, m.PlayerCardsPlayed, m.OpponentCardsPlayed,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// ListMatches returns the most recent matches first.
func (s *PostgresStore) ListMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ended_at, game_type, format_type, scenario_id, deck_name, deckstring,
		        player_class, turns, player_cards_played, opponent_cards_played
		   FROM matches ORDER BY ended_at DESC, id LIMIT $1`, defaultLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchRecord, error) {
		var m MatchRecord
		err := row.Scan(&m.ID, &m.EndedAt, &m.GameType, &m.FormatType, &m.ScenarioID, &m.DeckName,
			&m.DeckString, &m.PlayerClass, &m.Turns, &m.PlayerCardsPlayed, &m.OpponentCardsPlayed)
		m.EndedAt = m.EndedAt.UTC()
		return m, err
	})
}

// SaveReport persists a diagnostic report.
func (s *PostgresStore) SaveReport(ctx context.Context, r diagnostics.Report) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("encode report data: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, kind, message, created_at, data) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Kind, r.Message, r.CreatedAt.UTC(), data,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns reports of one kind, or of every kind when kind is
// empty, newest first.
func (s *PostgresStore) ListReports(ctx context.Context, kind string, limit int) ([]diagnostics.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, message, created_at, data FROM reports
		  WHERE ($1 = '' OR kind = $1) ORDER BY created_at DESC, id LIMIT $2`,
		kind, defaultLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (diagnostics.Report, error) {
		var r diagnostics.Report
		var data []byte
		if err := row.Scan(&r.ID, &r.Kind, &r.Message, &r.CreatedAt, &data); err != nil {
			return r, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		return r, json.Unmarshal(data, &r.Data)
	})
}

// ImportCards replaces the card catalogue in one transaction, batching the
// inserts.
func (s *PostgresStore) ImportCards(ctx context.Context, list []cards.Card) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "TRUNCATE cards"); err != nil {
		return 0, fmt.Errorf("clear cards: %w", err)
	}
	batch := &pgx.Batch{}
	for _, c := range list {
		if c.ID == "" {
			continue
		}
		mechanics, err := json.Marshal(c.Mechanics)
		if err != nil {
			return 0, fmt.Errorf("encode mechanics of %s: %w", c.ID, err)
		}
		batch.Queue(
			`INSERT INTO cards (id, dbf_id, name, cost, rarity, type, race, player_class, card_set, mechanics)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO NOTHING`,
			c.ID, c.DbfID, c.Name, c.Cost, c.Rarity, c.Type, c.Race, c.PlayerClass, c.Set, mechanics,
		)
	}
	imported := batch.Len()
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert cards: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("cards imported", zap.Int("count", imported))
	return imported, nil
}

// LoadCards reads the whole catalogue.
func (s *PostgresStore) LoadCards(ctx context.Context) ([]cards.Card, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, dbf_id, name, cost, rarity, type, race, player_class, card_set, mechanics FROM cards ORDER BY dbf_id`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cards.Card, error) {
		var c cards.Card
		var mechanics []byte
		if err := row.Scan(&c.ID, &c.DbfID, &c.Name, &c.Cost, &c.Rarity, &c.Type, &c.Race,
			&c.PlayerClass, &c.Set, &mechanics); err != nil {
			return c, err
		}
		return c, json.Unmarshal(mechanics, &c.Mechanics)
	})
}
