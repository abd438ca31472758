package gamestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPlayTimingLeavesOriginal(t *testing.T) {
	s := New()
	first, s1 := s.NextPlayTiming()
	second, s2 := s1.NextPlayTiming()

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 0, s.PlayTimingCounter)
	assert.Equal(t, 1, s1.PlayTimingCounter)
	assert.Equal(t, 2, s2.PlayTimingCounter)
}

func TestWithDeckCopiesState(t *testing.T) {
	s := New()
	s.CurrentTurn = 4
	deck := NewDeckState([]DeckCard{{CardID: "A"}})

	next := s.WithDeck(true, deck)
	assert.Nil(t, s.PlayerDeck)
	assert.Same(t, deck, next.PlayerDeck)
	assert.Same(t, deck, next.Deck(true))
	assert.Nil(t, next.Deck(false))
	assert.Equal(t, 4, next.CurrentTurn)

	var none *GameState
	assert.Nil(t, none.Deck(true))
}

func TestNewDeckStateSeedsLibrary(t *testing.T) {
	list := []DeckCard{{CardID: "A"}, {CardID: "B"}}
	deck := NewDeckState(list)
	require.Len(t, deck.Deck, 2)

	// the library is a copy, not the registered list itself
	deck.Deck[0].CardID = "X"
	assert.Equal(t, "A", deck.DeckList[0].CardID)
}

func TestValidateZones(t *testing.T) {
	s := New()
	assert.NoError(t, s.ValidateZones())

	deck := NewDeckState(nil)
	deck.Hand = []DeckCard{{EntityID: 5, CardID: "A"}}
	deck.Board = []DeckCard{{EntityID: 6, CardID: "B"}}
	deck.OtherZone = []DeckCard{
		{EntityID: 7, CardID: "C", Zone: ZoneGraveyard},
		// a transformed record shares the id of its replacement
		{EntityID: 6, CardID: "B0", Zone: ZoneTransformedIntoOther},
	}
	deck.Secrets = []BoardSecret{{EntityID: 8}}
	s = s.WithDeck(true, deck)
	assert.NoError(t, s.ValidateZones())

	broken := deck.Clone()
	broken.Board = append([]DeckCard{{EntityID: 5, CardID: "A"}}, broken.Board...)
	err := s.WithDeck(false, broken).ValidateZones()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opponent deck: entity 5")
}

func TestWithoutOption(t *testing.T) {
	secret := BoardSecret{EntityID: 1, AllPossibleOptions: []SecretOption{
		{CardID: "FREEZING_TRAP", IsValidOption: true},
		{CardID: "EXPLOSIVE_TRAP", IsValidOption: true},
	}}
	next := secret.WithoutOption("FREEZING_TRAP")
	assert.False(t, next.AllPossibleOptions[0].IsValidOption)
	assert.True(t, next.AllPossibleOptions[1].IsValidOption)
	assert.True(t, secret.AllPossibleOptions[0].IsValidOption)
}

func TestFormatName(t *testing.T) {
	assert.Equal(t, "standard", FormatName(FormatStandard))
	assert.Equal(t, "wild", FormatName(FormatWild))
	assert.Equal(t, "classic", FormatName(FormatClassic))
	assert.Equal(t, "unknown", FormatName(42))
}
