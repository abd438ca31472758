package parser

import (
	"context"
	"testing"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
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
		{ID: "MINION_A", DbfID: 1, Name: "River Crocolisk", Cost: 2, Rarity: "FREE", Type: cards.TypeMinion},
		{ID: "SPELL_B", DbfID: 2, Name: "Arcane Intellect", Cost: 3, Rarity: "FREE", Type: cards.TypeSpell},
		{ID: "ELEMENTAL_C", DbfID: 3, Name: "Fire Fly", Cost: 1, Rarity: "COMMON", Type: cards.TypeMinion, Race: cards.RaceElemental},
		{ID: "MINION_Y", DbfID: 4, Name: "Sheep", Cost: 1, Rarity: "EPIC", Type: cards.TypeMinion},
		{ID: cards.Counterspell, DbfID: 113, Name: "Counterspell", Cost: 3, Type: cards.TypeSpell},
		{ID: cards.FreezingTrap, DbfID: 519, Name: "Freezing Trap", Cost: 2, Type: cards.TypeSpell},
		{ID: "DRG_315", DbfID: 5, Name: "Embiggen", Cost: 0, Type: cards.TypeSpell},
		{ID: "BT_011", DbfID: 6, Name: "Libram of Justice", Cost: 5, Type: cards.TypeSpell},
		{ID: "BAR_074", DbfID: 7, Name: "Far Watch Post", Cost: 2, Type: cards.TypeMinion},
	}, nil)
}

type staticDecks struct{ list Decklist }

func (s staticDecks) CurrentDeck() Decklist { return s.list }

func testDecklist(db cards.Lookup, ids ...string) Decklist {
	list := Decklist{Name: "Test Deck", PlayerClass: "hunter"}
	h := NewHelper(db, nil)
	for _, id := range ids {
		list.Cards = append(list.Cards, h.BuildCard(id, 0))
	}
	return list
}

func newTestCatalogue(t *testing.T, list Decklist) []Parser {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return Catalogue(Deps{
		Cards:   testCards(),
		Decks:   staticDecks{list: list},
		Secrets: NewSecretConfig(testSecretModes, logger),
		Logger:  logger,
	})
}

var testSecretModes = []ModeSecrets{
	{Mode: "standard", Secrets: []SecretEntry{
		{CardID: cards.FreezingTrap, PlayerClass: "hunter"},
		{CardID: "EX1_610", PlayerClass: "hunter"},
		{CardID: cards.Counterspell, PlayerClass: "mage"},
	}},
	{Mode: "wild", Secrets: []SecretEntry{
		{CardID: cards.FreezingTrap, PlayerClass: "hunter"},
	}},
}

func cardEvent(eventType gameevent.EventType, cardID string, controllerID, entityID int) gameevent.GameEvent {
	return gameevent.New(eventType, cardID, controllerID, entityID).WithPlayers(localPlayer, opponentPlayer)
}

// apply runs every applicable parser in catalogue order, the way the
// dispatch loop does.
func apply(t *testing.T, parsers []Parser, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) *gamestate.GameState {
	t.Helper()
	for _, p := range parsers {
		if !p.Applies(event, state) {
			continue
		}
		next, err := p.Parse(context.Background(), state, event, pctx)
		require.NoError(t, err, p.Event())
		require.NotNil(t, next, p.Event())
		state = next
	}
	return state
}

func startMatch(t *testing.T, parsers []Parser) *gamestate.GameState {
	t.Helper()
	state := apply(t, parsers, gamestate.New(), cardEvent(gameevent.GameStart, "", 0, 0), Context{})
	meta := cardEvent(gameevent.MatchMetadata, "", 0, 0).WithData("metaData", map[string]any{
		"GameType":   float64(gamestate.GameTypeRanked),
		"FormatType": float64(gamestate.FormatStandard),
		"ScenarioID": float64(2),
	})
	return apply(t, parsers, state, meta, Context{})
}

func draw(t *testing.T, parsers []Parser, state *gamestate.GameState, cardID string, controllerID, entityID int) *gamestate.GameState {
	t.Helper()
	return apply(t, parsers, state, cardEvent(gameevent.CardDrawFromDeck, cardID, controllerID, entityID), Context{})
}

func parserNamed(t *testing.T, parsers []Parser, name string) Parser {
	t.Helper()
	for _, p := range parsers {
		if p.Event() == name {
			return p
		}
	}
	t.Fatalf("no parser %s", name)
	return nil
}
