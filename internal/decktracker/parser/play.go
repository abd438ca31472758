package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
)

// CardPlayedFromHandParser handles a card played from hand. Minions go to the
// board with a fresh play timing, everything else to the other zone. A card
// countered by the secret announced right after it is dropped from both and
// from the play counters.
type CardPlayedFromHandParser struct {
	base
	special *SpecialCards
}

func (p *CardPlayedFromHandParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.CardPlayed
}

func (p *CardPlayedFromHandParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	cardID, _, _, entityID := event.Parse()
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	transient := event.AdditionalData.Bool("transientCard")
	noList := len(deck.DeckList) == 0

	card, found := p.helper.FindCardInZone(deck.Hand, cardID, entityID)
	hand, removed, removedFromHand := p.helper.RemoveSingleCardFromZone(deck.Hand, cardID, entityID, noList && !transient)
	if !found && removedFromHand {
		card, found = removed, true
	}

	// a card created in the library can be drawn and played without ever
	// being revealed in hand
	library := deck.Deck
	if !removedFromHand && cardID != "" && !transient {
		if lib, fromDeck, ok := p.helper.RemoveSingleCardFromZone(library, cardID, entityID, noList); ok {
			library = lib
			if !found {
				card, found = fromDeck, true
			}
		}
	}

	ref := p.cards.GetCard(cardID)
	isMinion := ref.IsMinion()
	countered := isCountered(pctx, cardID, entityID)

	var played gamestate.DeckCard
	if found {
		played = p.helper.Reveal(card, cardID, entityID)
	} else {
		p.missing(p, event, "hand")
		played = p.helper.BuildCard(cardID, entityID)
	}
	if played.Rarity == "" {
		played.Rarity = ref.LowerRarity()
	}
	played.TemporaryCard = false
	played.Zone = gamestate.ZoneNone

	next := state
	if isMinion && !countered {
		var timing int
		timing, next = state.NextPlayTiming()
		played.Zone = gamestate.ZonePlay
		played.PlayTiming = timing
	}

	d := deck.Clone()
	d.Hand = hand
	d.Deck = library
	if countered {
		p.logger.Debug("card countered",
			zap.String("card_id", cardID),
			zap.Int("entity_id", entityID),
			zap.String("secret_card_id", pctx.SecretWillTrigger.CardID),
		)
		return next.WithDeck(isPlayer, d), nil
	}

	if isMinion {
		d.Board = p.helper.AddSingleCardToZone(deck.Board, played)
	} else {
		d.OtherZone = p.helper.AddSingleCardToZone(deck.OtherZone, played)
	}
	d.CardsPlayedThisTurn = appendCard(deck.CardsPlayedThisTurn, played)
	if ref.IsSpell() {
		d.SpellsPlayedThisMatch = appendCard(deck.SpellsPlayedThisMatch, played)
	}
	if cards.IsWatchPost(ref.ID) {
		d.WatchpostsPlayedThisMatch++
	}
	if cards.IsLibram(ref.ID) {
		d.LibramsPlayedThisMatch++
	}
	if ref.IsElemental() {
		d.ElementalsPlayedThisTurn++
	}

	short := gamestate.ShortCard{EntityID: played.EntityID, CardID: played.CardID, Side: side(isPlayer)}
	d = p.special.Apply(ctx, played, d, state.CurrentTurn)
	d.CardsPlayedThisMatch = appendShort(d.CardsPlayedThisMatch, short)

	next = next.WithDeck(isPlayer, d)
	next.CardsPlayedThisMatch = appendShort(state.CardsPlayedThisMatch, short)
	return next, nil
}

func (p *CardPlayedFromHandParser) Event() string { return string(gameevent.CardPlayed) }

func isCountered(pctx Context, cardID string, entityID int) bool {
	t := pctx.SecretWillTrigger
	if t == nil || !cards.IsCounterspell(t.CardID) {
		return false
	}
	return (t.ReactingToEntityID != 0 && t.ReactingToEntityID == entityID) ||
		(t.ReactingToCardID != "" && t.ReactingToCardID == cardID)
}

// MinionSummonedParser puts a minion summoned by an effect onto the board.
type MinionSummonedParser struct{ base }

func (p *MinionSummonedParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.MinionSummoned
}

func (p *MinionSummonedParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	d, card, ok := p.helper.RemoveEntityEverywhere(deck, event.EntityID)
	if ok {
		card = p.helper.Reveal(card, event.CardID, event.EntityID)
	} else {
		card = p.helper.BuildCard(event.CardID, event.EntityID)
	}
	if creator := event.AdditionalData.String("creatorCardId"); creator != "" {
		card.CreatorCardID = creator
	}
	timing, next := state.NextPlayTiming()
	card.Zone = gamestate.ZonePlay
	card.PlayTiming = timing

	d = d.Clone()
	d.Board = p.helper.AddSingleCardToZone(d.Board, card)
	return next.WithDeck(isPlayer, d), nil
}

func (p *MinionSummonedParser) Event() string { return string(gameevent.MinionSummoned) }
