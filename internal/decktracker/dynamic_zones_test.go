package decktracker

import (
	"testing"

	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zoneByID(zones []gamestate.DynamicZone, id string) (gamestate.DynamicZone, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return gamestate.DynamicZone{}, false
}

func TestEnrichDynamicZones(t *testing.T) {
	list := []gamestate.DeckCard{{CardID: "MINION_A"}, {CardID: "MINION_A"}, {CardID: "SPELL_B"}, {CardID: "ELEMENTAL_C"}}
	deck := gamestate.NewDeckState(list)
	deck.Deck = []gamestate.DeckCard{{CardID: "MINION_A"}, {CardID: "SPELL_B"}, {CardID: "ELEMENTAL_C", CreatorCardID: "SPELL_B", EntityID: 40}}
	deck.Hand = []gamestate.DeckCard{
		{CardID: "MINION_A", EntityID: 4},
		{CardID: "SPELL_B", EntityID: 41, CreatorCardID: "X"},
	}
	// entity 9 was MINION_A, then SPELL_B, and now sits on the board as ELEMENTAL_C
	deck.OtherZone = []gamestate.DeckCard{
		{CardID: "MINION_A", EntityID: 9, Zone: gamestate.ZoneTransformedIntoOther},
		{CardID: "SPELL_B", EntityID: 9, Zone: gamestate.ZoneTransformedIntoOther},
	}
	deck.Board = []gamestate.DeckCard{{CardID: "ELEMENTAL_C", EntityID: 9}}

	state := gamestate.New()
	state.PlayerDeck = deck
	state.OpponentDeck = gamestate.NewDeckState(nil)
	state.OpponentDeck.Deck = make([]gamestate.DeckCard, 3)

	enriched := EnrichDynamicZones(state)
	assert.Nil(t, state.PlayerDeck.DynamicZones, "input untouched")

	remaining, ok := zoneByID(enriched.PlayerDeck.DynamicZones, ZoneRemaining)
	require.True(t, ok)
	// one MINION_A in hand and one transformed away; the generated SPELL_B, the
	// intermediate SPELL_B form and the ELEMENTAL_C it became do not count
	var ids []string
	for _, c := range remaining.Cards {
		ids = append(ids, c.CardID)
	}
	assert.Equal(t, []string{"SPELL_B", "ELEMENTAL_C"}, ids)

	created, ok := zoneByID(enriched.PlayerDeck.DynamicZones, ZoneCreatedInDeck)
	require.True(t, ok)
	require.Len(t, created.Cards, 1)
	assert.Equal(t, 40, created.Cards[0].EntityID)

	unknown, ok := zoneByID(enriched.OpponentDeck.DynamicZones, ZoneUnknownInDeck)
	require.True(t, ok)
	assert.Len(t, unknown.Cards, 3)
	_, ok = zoneByID(enriched.OpponentDeck.DynamicZones, ZoneRemaining)
	assert.False(t, ok)

	assert.Equal(t, enriched, EnrichDynamicZones(enriched), "enrichment is idempotent")
}

func TestEnrichDynamicZonesEmptyState(t *testing.T) {
	empty := gamestate.New()
	assert.Same(t, empty, EnrichDynamicZones(empty))
	assert.Nil(t, EnrichDynamicZones(nil))
}
