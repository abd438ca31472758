package cards

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Card types as they appear in the reference data.
const (
	TypeMinion      = "Minion"
	TypeSpell       = "Spell"
	TypeWeapon      = "Weapon"
	TypeHero        = "Hero"
	TypeHeroPower   = "Hero_power"
	TypeEnchantment = "Enchantment"
)

// RaceElemental is the race tag of elemental minions.
const RaceElemental = "ELEMENTAL"

// Card is one reference card definition.
type Card struct {
	ID          string   `json:"id"`
	DbfID       int      `json:"dbfId"`
	Name        string   `json:"name"`
	Cost        int      `json:"cost"`
	Rarity      string   `json:"rarity,omitempty"`
	Type        string   `json:"type,omitempty"`
	Race        string   `json:"race,omitempty"`
	PlayerClass string   `json:"playerClass,omitempty"`
	Set         string   `json:"set,omitempty"`
	Mechanics   []string `json:"mechanics,omitempty"`
}

// IsMinion reports whether the card is a minion.
func (c Card) IsMinion() bool {
	return strings.EqualFold(c.Type, TypeMinion)
}

// IsSpell reports whether the card is a spell.
func (c Card) IsSpell() bool {
	return strings.EqualFold(c.Type, TypeSpell)
}

// IsElemental reports whether the card is an elemental minion.
func (c Card) IsElemental() bool {
	return c.IsMinion() && strings.EqualFold(c.Race, RaceElemental)
}

// LowerRarity returns the rarity in lowercase, as displayed by the tracker.
func (c Card) LowerRarity() string {
	return strings.ToLower(c.Rarity)
}

// Lookup is the read-only view of the card database that parsers depend on.
type Lookup interface {
	GetCard(cardID string) Card
	GetCardFromDbfID(dbfID int) Card
}

// DB is an in-memory reference card database.
type DB struct {
	mu     sync.RWMutex
	byID   map[string]Card
	byDbf  map[int]Card
	byName map[string]Card
	logger *zap.Logger
}

// NewDB builds a database from the given cards.
func NewDB(cards []Card, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &DB{
		byID:   make(map[string]Card, len(cards)),
		byDbf:  make(map[int]Card, len(cards)),
		byName: make(map[string]Card, len(cards)),
		logger: logger,
	}
	db.add(cards)
	return db
}

// ReadFile decodes a JSON array of cards.
func ReadFile(path string) ([]Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cards file: %w", err)
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("decode cards file: %w", err)
	}
	return cards, nil
}

// Load reads a JSON array of cards from path.
func Load(path string, logger *zap.Logger) (*DB, error) {
	cards, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	db := NewDB(cards, logger)
	db.logger.Info("card database loaded",
		zap.String("path", path),
		zap.Int("cards", len(cards)),
	)
	return db, nil
}

func (db *DB) add(cards []Card) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, c := range cards {
		if c.ID == "" {
			continue
		}
		db.byID[c.ID] = c
		if c.DbfID != 0 {
			db.byDbf[c.DbfID] = c
		}
		if c.Name != "" {
			db.byName[db.normalizeName(c.Name)] = c
		}
	}
}

// GetCard returns the card with the given id, or an empty Card when unknown.
func (db *DB) GetCard(cardID string) Card {
	if cardID == "" {
		return Card{}
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.byID[cardID]
}

// GetCardFromDbfID returns the card with the given numeric id, or an empty Card.
func (db *DB) GetCardFromDbfID(dbfID int) Card {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.byDbf[dbfID]
}

// FindByName looks a card up by display name, ignoring case and Unicode
// composition differences.
func (db *DB) FindByName(name string) (Card, bool) {
	key := db.normalizeName(name)
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.byName[key]
	return c, ok
}

// Size returns the number of cards indexed by id.
func (db *DB) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.byID)
}

func (db *DB) normalizeName(name string) string {
	// a Caser is stateful, so each call gets its own
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
