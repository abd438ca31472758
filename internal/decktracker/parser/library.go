package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
)

// CreateCardInDeckParser adds a card generated directly into the library.
type CreateCardInDeckParser struct{ base }

func (p *CreateCardInDeckParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CreateCardInDeck
}

func (p *CreateCardInDeckParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	card := p.helper.BuildCard(event.CardID, event.EntityID)
	card.CreatorCardID = event.AdditionalData.String("creatorCardId")

	d := deck.Clone()
	d.Deck = p.helper.AddSingleCardToZone(deck.Deck, card)
	return state.WithDeck(isPlayer, d), nil
}

func (p *CreateCardInDeckParser) Event() string { return string(gameevent.CreateCardInDeck) }

// CardRemovedFromDeckParser sets aside a card taken out of the library.
type CardRemovedFromDeckParser struct{ base }

func (p *CardRemovedFromDeckParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CardRemovedFromDeck
}

func (p *CardRemovedFromDeckParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	return p.deckToOther(p, state, event, gamestate.ZoneSetAside), nil
}

func (p *CardRemovedFromDeckParser) Event() string { return string(gameevent.CardRemovedFromDeck) }

// BurnedCardParser handles cards drawn into a full hand.
type BurnedCardParser struct{ base }

func (p *BurnedCardParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.BurnedCard
}

func (p *BurnedCardParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	return p.deckToOther(p, state, event, gamestate.ZoneBurned), nil
}

func (p *BurnedCardParser) Event() string { return string(gameevent.BurnedCard) }

// CardRecruitedParser puts a minion from the library straight onto the board.
type CardRecruitedParser struct{ base }

func (p *CardRecruitedParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.RecruitCard
}

func (p *CardRecruitedParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	library, card, ok := p.helper.RemoveSingleCardFromZone(deck.Deck, event.CardID, event.EntityID, len(deck.DeckList) == 0)
	if !ok {
		p.missing(p, event, "deck")
		card = p.helper.BuildCard(event.CardID, event.EntityID)
	}
	card = p.helper.Reveal(card, event.CardID, event.EntityID)
	timing, next := state.NextPlayTiming()
	card.Zone = gamestate.ZonePlay
	card.PlayTiming = timing

	d := deck.Clone()
	d.Deck = library
	d.Board = p.helper.AddSingleCardToZone(deck.Board, card)
	return next.WithDeck(isPlayer, d), nil
}

func (p *CardRecruitedParser) Event() string { return string(gameevent.RecruitCard) }
