package decktracker

import (
	"context"
	"sync"
	"testing"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/deckstring"
	"github.com/firestone-hs/decktracker/internal/decktracker/parser"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	playerID   = 1
	opponentID = 2
)

var (
	localPlayer    = gameevent.PlayerInfo{PlayerID: playerID, Name: "player#1234"}
	opponentPlayer = gameevent.PlayerInfo{PlayerID: opponentID, Name: "opponent#5678"}
)

func testCards() *cards.DB {
	return cards.NewDB([]cards.Card{
		{ID: "HERO_05", DbfID: 31, Name: "Rexxar", Type: cards.TypeHero, PlayerClass: "Hunter"},
		{ID: "MINION_A", DbfID: 1, Name: "River Crocolisk", Cost: 2, Rarity: "FREE", Type: cards.TypeMinion},
		{ID: "SPELL_B", DbfID: 2, Name: "Arcane Intellect", Cost: 3, Rarity: "FREE", Type: cards.TypeSpell},
		{ID: "ELEMENTAL_C", DbfID: 3, Name: "Fire Fly", Cost: 1, Rarity: "COMMON", Type: cards.TypeMinion, Race: cards.RaceElemental},
		{ID: cards.Counterspell, DbfID: 113, Name: "Counterspell", Cost: 3, Type: cards.TypeSpell},
	}, nil)
}

// testDeckstring encodes 2x MINION_A, 1x SPELL_B and 1x ELEMENTAL_C.
func testDeckstring(t *testing.T) string {
	t.Helper()
	ds, err := deckstring.Encode(deckstring.Deck{
		Format: 2,
		Heroes: []int{31},
		Cards: []deckstring.CardCount{
			{DbfID: 1, Count: 2},
			{DbfID: 2, Count: 1},
			{DbfID: 3, Count: 1},
		},
	})
	require.NoError(t, err)
	return ds
}

func cardEvent(eventType gameevent.EventType, cardID string, controllerID, entityID int) gameevent.GameEvent {
	return gameevent.New(eventType, cardID, controllerID, entityID).WithPlayers(localPlayer, opponentPlayer)
}

func metadataEvent(gameType, scenarioID int) gameevent.GameEvent {
	return cardEvent(gameevent.MatchMetadata, "", 0, 0).WithData("metaData", map[string]any{
		"GameType":   float64(gameType),
		"FormatType": float64(2),
		"ScenarioID": float64(scenarioID),
	})
}

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	names []string
	all   []Notification
}

func (r *recorder) Emit(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, n.Event.Name)
	r.all = append(r.all, n)
}

func (r *recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type testRig struct {
	service *Service
	holder  *DeckHolder
	bus     *Bus
	emitted *recorder
}

func newTestRig(t *testing.T, mutate func(*ServiceConfig)) *testRig {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db := testCards()
	holder := NewDeckHolder(db, logger)
	bus := NewBus()
	emitted := &recorder{}
	cfg := ServiceConfig{
		Parsers:         parser.Catalogue(parser.Deps{Cards: db, Decks: holder, Logger: logger}),
		Holder:          holder,
		Bus:             bus,
		Emitters:        []Emitter{emitted},
		Logger:          logger,
		RequireDecklist: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testRig{service: NewService(cfg), holder: holder, bus: bus, emitted: emitted}
}
