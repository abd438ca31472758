package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
	   id TEXT PRIMARY KEY,
	   ended_at INTEGER NOT NULL,
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
	   created_at INTEGER NOT NULL,
	   data TEXT NOT NULL DEFAULT '{}'
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
	   mechanics TEXT NOT NULL DEFAULT '[]'
	 )`,
}

// SQLiteStore is the local, file-backed store.
type SQLiteStore struct {
	sqlDB  *sql.DB
	logger *zap.Logger
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	memory := path == MemoryDSN
	dsn := path
	if !memory {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if memory {
		// every connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	logger.Info("sqlite store opened", zap.String("path", path))
	return &SQLiteStore{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveMatch inserts or replaces a match summary.
func (s *SQLiteStore) SaveMatch(ctx context.Context, m MatchRecord) error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO matches (
		   id, ended_at, game_type, format_type, scenario_id, deck_name, deckstring,
		   player_class, turns, player_cards_played, opponent_cards_played
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, toMillis(m.EndedAt), m.GameType, m.FormatType, m.ScenarioID, m.DeckName, m.DeckString,
		m.PlayerClass, m.Turns, m.PlayerCardsPlayed, m.OpponentCardsPlayed,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// ListMatches returns the most recent matches first.
func (s *SQLiteStore) ListMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, ended_at, game_type, format_type, scenario_id, deck_name, deckstring,
		        player_class, turns, player_cards_played, opponent_cards_played
		   FROM matches ORDER BY ended_at DESC, id LIMIT ?`, defaultLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var m MatchRecord
		var endedAt int64
		if err := rows.Scan(&m.ID, &endedAt, &m.GameType, &m.FormatType, &m.ScenarioID, &m.DeckName,
			&m.DeckString, &m.PlayerClass, &m.Turns, &m.PlayerCardsPlayed, &m.OpponentCardsPlayed); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.EndedAt = fromMillis(endedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveReport persists a diagnostic report.
func (s *SQLiteStore) SaveReport(ctx context.Context, r diagnostics.Report) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("encode report data: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO reports (id, kind, message, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Message, toMillis(r.CreatedAt), string(data),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns reports of one kind, or of every kind when kind is
// empty, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, kind string, limit int) ([]diagnostics.Report, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, kind, message, created_at, data FROM reports
		  WHERE (? = '' OR kind = ?) ORDER BY created_at DESC, id LIMIT ?`,
		kind, kind, defaultLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []diagnostics.Report
	for rows.Next() {
		var r diagnostics.Report
		var createdAt int64
		var data string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Message, &createdAt, &data); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.CreatedAt = fromMillis(createdAt)
		if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImportCards replaces the card catalogue in one transaction.
func (s *SQLiteStore) ImportCards(ctx context.Context, list []cards.Card) (int, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return 0, fmt.Errorf("clear cards: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO cards (id, dbf_id, name, cost, rarity, type, race, player_class, card_set, mechanics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	imported := 0
	for _, c := range list {
		if c.ID == "" {
			continue
		}
		mechanics, err := json.Marshal(c.Mechanics)
		if err != nil {
			return 0, fmt.Errorf("encode mechanics of %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DbfID, c.Name, c.Cost, c.Rarity, c.Type, c.Race,
			c.PlayerClass, c.Set, string(mechanics)); err != nil {
			return 0, fmt.Errorf("insert card %s: %w", c.ID, err)
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("cards imported", zap.Int("count", imported))
	return imported, nil
}

// LoadCards reads the whole catalogue.
func (s *SQLiteStore) LoadCards(ctx context.Context) ([]cards.Card, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, dbf_id, name, cost, rarity, type, race, player_class, card_set, mechanics FROM cards ORDER BY dbf_id`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var out []cards.Card
	for rows.Next() {
		var c cards.Card
		var mechanics string
		if err := rows.Scan(&c.ID, &c.DbfID, &c.Name, &c.Cost, &c.Rarity, &c.Type, &c.Race,
			&c.PlayerClass, &c.Set, &mechanics); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if err := json.Unmarshal([]byte(mechanics), &c.Mechanics); err != nil {
			return nil, fmt.Errorf("decode mechanics of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
