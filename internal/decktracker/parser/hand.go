package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
)

// CardDrawParser moves a card from the library to the hand.
type CardDrawParser struct{ base }

func (p *CardDrawParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CardDrawFromDeck
}

func (p *CardDrawParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	library, card, ok := p.helper.RemoveSingleCardFromZone(deck.Deck, event.CardID, event.EntityID, len(deck.DeckList) == 0)
	if ok {
		card = p.helper.Reveal(card, event.CardID, event.EntityID)
	} else {
		p.missing(p, event, "deck")
		card = p.helper.BuildCard(event.CardID, event.EntityID)
	}
	if creator := event.AdditionalData.String("creatorCardId"); creator != "" {
		card.CreatorCardID = creator
	}
	card.Zone = gamestate.ZoneNone

	d := deck.Clone()
	d.Deck = library
	d.Hand = p.helper.AddSingleCardToZone(deck.Hand, card)
	return state.WithDeck(isPlayer, d), nil
}

func (p *CardDrawParser) Event() string { return string(gameevent.CardDrawFromDeck) }

// ReceiveCardInHandParser adds a card created in or returned to the hand.
type ReceiveCardInHandParser struct{ base }

func (p *ReceiveCardInHandParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.ReceiveCardInHand
}

func (p *ReceiveCardInHandParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	// a bounced minion leaves the board it was on
	d, card, ok := p.helper.RemoveEntityEverywhere(deck, event.EntityID)
	if ok {
		card = p.helper.Reveal(card, event.CardID, event.EntityID)
	} else {
		card = p.helper.BuildCard(event.CardID, event.EntityID)
	}
	card.Zone = gamestate.ZoneNone
	card.PlayTiming = 0
	if creator := event.AdditionalData.String("creatorCardId"); creator != "" {
		card.CreatorCardID = creator
	}
	if event.AdditionalData.Bool("isTemporary") {
		card.TemporaryCard = true
	}

	d = d.Clone()
	d.Hand = p.helper.AddSingleCardToZone(d.Hand, card)
	return state.WithDeck(isPlayer, d), nil
}

func (p *ReceiveCardInHandParser) Event() string { return string(gameevent.ReceiveCardInHand) }

// CardBackToDeckParser shuffles a card from hand or board into the library.
type CardBackToDeckParser struct{ base }

func (p *CardBackToDeckParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CardBackToDeck
}

func (p *CardBackToDeckParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	d, card, ok := p.helper.RemoveEntityEverywhere(deck, event.EntityID)
	if !ok {
		d = deck.Clone()
		hand, removed, found := p.helper.RemoveSingleCardFromZone(deck.Hand, event.CardID, event.EntityID, len(deck.DeckList) == 0)
		if found {
			d.Hand = hand
			card = removed
		} else {
			p.missing(p, event, event.AdditionalData.String("initialZone"))
			card = p.helper.BuildCard(event.CardID, event.EntityID)
		}
	}
	card = p.helper.Reveal(card, event.CardID, event.EntityID)
	card.Zone = gamestate.ZoneNone
	card.PlayTiming = 0

	d = d.Clone()
	d.Deck = p.helper.AddSingleCardToZone(d.Deck, card)
	return state.WithDeck(isPlayer, d), nil
}

func (p *CardBackToDeckParser) Event() string { return string(gameevent.CardBackToDeck) }

// CardRemovedFromHandParser files a card taken out of the hand without being
// played.
type CardRemovedFromHandParser struct{ base }

func (p *CardRemovedFromHandParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CardRemovedFromHand
}

func (p *CardRemovedFromHandParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	return p.handToOther(p, state, event, gamestate.ZoneSetAside), nil
}

func (p *CardRemovedFromHandParser) Event() string { return string(gameevent.CardRemovedFromHand) }

// EndOfEchoInHandParser retires the echo copies left in hand at end of turn.
type EndOfEchoInHandParser struct{ base }

func (p *EndOfEchoInHandParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.EndOfEchoInHand
}

func (p *EndOfEchoInHandParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	return p.handToOther(p, state, event, gamestate.ZoneEndOfEcho), nil
}

func (p *EndOfEchoInHandParser) Event() string { return string(gameevent.EndOfEchoInHand) }

// DiscardedCardParser moves a discarded card to the other zone.
type DiscardedCardParser struct{ base }

func (p *DiscardedCardParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.DiscardCard
}

func (p *DiscardedCardParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	return p.handToOther(p, state, event, gamestate.ZoneDiscard), nil
}

func (p *DiscardedCardParser) Event() string { return string(gameevent.DiscardCard) }

// handToOther moves the event's card from hand to the other zone with the
// given tag. A card missing from hand leaves the state unchanged.
func (b base) handToOther(p Parser, state *gamestate.GameState, event gameevent.GameEvent, zone string) *gamestate.GameState {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state
	}
	hand, card, ok := b.helper.RemoveSingleCardFromZone(deck.Hand, event.CardID, event.EntityID, len(deck.DeckList) == 0)
	if !ok {
		b.missing(p, event, "hand")
		return state
	}
	card = b.helper.Reveal(card, event.CardID, event.EntityID)

	d := deck.Clone()
	d.Hand = hand
	d.OtherZone = b.helper.AddSingleCardToZone(deck.OtherZone, card.InZone(zone))
	return state.WithDeck(isPlayer, d)
}

// deckToOther moves the event's card from the library to the other zone.
func (b base) deckToOther(p Parser, state *gamestate.GameState, event gameevent.GameEvent, zone string) *gamestate.GameState {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state
	}
	library, card, ok := b.helper.RemoveSingleCardFromZone(deck.Deck, event.CardID, event.EntityID, len(deck.DeckList) == 0)
	if !ok {
		b.missing(p, event, "deck")
		card = b.helper.BuildCard(event.CardID, event.EntityID)
	}
	card = b.helper.Reveal(card, event.CardID, event.EntityID)

	d := deck.Clone()
	d.Deck = library
	d.OtherZone = b.helper.AddSingleCardToZone(deck.OtherZone, card.InZone(zone))
	return state.WithDeck(isPlayer, d)
}
