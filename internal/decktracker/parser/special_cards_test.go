package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSpecialCardsCondition(t *testing.T) {
	rules := []Rule{{
		CardID: "SPELL_B",
		When:   "turn >= 5 && deck.handSize == 0",
		Effects: []Effect{
			{Kind: EffectSetCost, Value: 0, Zones: []string{"deck", "hand"}},
		},
	}}
	special, err := NewSpecialCards(rules, zaptest.NewLogger(t))
	require.NoError(t, err)

	played := gamestate.DeckCard{CardID: "SPELL_B", CardType: "Spell"}
	deck := &gamestate.DeckState{Deck: []gamestate.DeckCard{{CardID: "MINION_A", ManaCost: 2, CardType: "Minion"}}}

	same := special.Apply(context.Background(), played, deck, 3)
	assert.Same(t, deck, same)

	out := special.Apply(context.Background(), played, deck, 6)
	assert.Zero(t, out.Deck[0].ManaCost)
	assert.Equal(t, 2, deck.Deck[0].ManaCost)
	assert.Empty(t, out.GlobalEffects)
}

func TestSpecialCardsCostNeverNegative(t *testing.T) {
	special, err := NewSpecialCards([]Rule{{
		CardID:  "SPELL_B",
		Effects: []Effect{{Kind: EffectAdjustCost, Value: -3, Zones: []string{"hand"}}},
	}}, nil)
	require.NoError(t, err)

	deck := &gamestate.DeckState{Hand: []gamestate.DeckCard{{ManaCost: 1}, {ManaCost: 5}}}
	out := special.Apply(context.Background(), gamestate.DeckCard{CardID: "SPELL_B"}, deck, 1)
	assert.Equal(t, 0, out.Hand[0].ManaCost)
	assert.Equal(t, 2, out.Hand[1].ManaCost)
}

func TestSpecialCardsRejectsBadRules(t *testing.T) {
	_, err := NewSpecialCards([]Rule{{CardID: "X", Effects: []Effect{{Kind: "summon"}}}}, nil)
	assert.Error(t, err)

	_, err = NewSpecialCards([]Rule{{CardID: "X", When: "turn + 1"}}, nil)
	assert.Error(t, err)

	_, err = NewSpecialCards([]Rule{{CardID: "X", When: "turn >"}}, nil)
	assert.Error(t, err)
}

func TestLoadSpecialCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	raw := `
- cardId: DRG_315
  effects:
    - kind: global_effect
    - kind: adjust_cost
      value: 1
      cardType: Minion
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	special, err := LoadSpecialCards(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	deck := &gamestate.DeckState{Deck: []gamestate.DeckCard{{CardID: "MINION_A", ManaCost: 2, CardType: "Minion"}}}
	out := special.Apply(context.Background(), gamestate.DeckCard{CardID: "DRG_315", EntityID: 9}, deck, 1)
	assert.Equal(t, 3, out.Deck[0].ManaCost)
	require.Len(t, out.GlobalEffects, 1)
	assert.Zero(t, out.GlobalEffects[0].EntityID)
}
