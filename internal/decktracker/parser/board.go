package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
)

// CardChangedOnBoardParser handles transforms. The board entity is located
// by entity id since its card id is the thing changing.
type CardChangedOnBoardParser struct{ base }

func (p *CardChangedOnBoardParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CardChangedOnBoard
}

func (p *CardChangedOnBoardParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	cardID, _, _, entityID := event.Parse()
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	card, ok := p.helper.FindCardInZone(deck.Board, "", entityID)
	if !ok {
		p.missing(p, event, "board")
		return state, nil
	}
	board, _, _ := p.helper.RemoveSingleCardFromZone(deck.Board, "", entityID, false)

	ref := p.cards.GetCard(cardID)
	updated := card
	updated.CardID = cardID
	updated.CardName = ref.Name
	updated.ManaCost = ref.Cost
	updated.Rarity = ref.LowerRarity()
	updated.CardType = ref.Type
	updated.CreatorCardID = event.AdditionalData.String("creatorCardId")

	d := deck.Clone()
	d.Board = p.helper.AddSingleCardToZone(board, updated)
	d.OtherZone = p.helper.AddSingleCardToZone(deck.OtherZone, card.InZone(gamestate.ZoneTransformedIntoOther))
	return state.WithDeck(isPlayer, d), nil
}

func (p *CardChangedOnBoardParser) Event() string { return string(gameevent.CardChangedOnBoard) }

// MinionDiedParser moves dead minions from either board to the graveyard.
type MinionDiedParser struct{ base }

func (p *MinionDiedParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.MinionsDied
}

func (p *MinionDiedParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	next := state
	for _, dead := range event.AdditionalData.Maps("deadMinions") {
		entityID, _ := dead.Int("EntityId")
		cardID := dead.String("CardId")
		moved := false
		for _, isPlayer := range []bool{true, false} {
			deck := next.Deck(isPlayer)
			if deck == nil {
				continue
			}
			board, card, ok := p.helper.RemoveSingleCardFromZone(deck.Board, "", entityID, false)
			if !ok {
				continue
			}
			card = p.helper.Reveal(card, cardID, entityID)
			d := deck.Clone()
			d.Board = board
			d.OtherZone = p.helper.AddSingleCardToZone(deck.OtherZone, card.InZone(gamestate.ZoneGraveyard))
			next = next.WithDeck(isPlayer, d)
			moved = true
			break
		}
		if !moved {
			p.missing(p, gameevent.GameEvent{Type: event.Type, CardID: cardID, EntityID: entityID}, "board")
		}
	}
	return next, nil
}

func (p *MinionDiedParser) Event() string { return string(gameevent.MinionsDied) }
