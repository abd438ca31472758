package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
)

// SecretPlayedFromHandParser moves a secret from hand to the pending
// secrets, with every card it could be as options.
type SecretPlayedFromHandParser struct {
	base
	secrets *SecretConfig
}

func (p *SecretPlayedFromHandParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.SecretPlayed
}

func (p *SecretPlayedFromHandParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	hand, card, ok := p.helper.RemoveSingleCardFromZone(deck.Hand, event.CardID, event.EntityID, len(deck.DeckList) == 0)
	if !ok {
		p.missing(p, event, "hand")
		card = p.helper.BuildCard(event.CardID, event.EntityID)
	}
	card = p.helper.Reveal(card, event.CardID, event.EntityID)

	d := deck.Clone()
	d.Hand = hand
	d.Secrets = addSecret(deck.Secrets, newBoardSecret(p.secrets, state, deck, event))
	d.CardsPlayedThisTurn = appendCard(deck.CardsPlayedThisTurn, card)
	d.SpellsPlayedThisMatch = appendCard(deck.SpellsPlayedThisMatch, card)
	short := gamestate.ShortCard{EntityID: event.EntityID, CardID: event.CardID, Side: side(isPlayer)}
	d.CardsPlayedThisMatch = appendShort(deck.CardsPlayedThisMatch, short)

	next := state.WithDeck(isPlayer, d)
	next.CardsPlayedThisMatch = appendShort(state.CardsPlayedThisMatch, short)
	return next, nil
}

func (p *SecretPlayedFromHandParser) Event() string { return string(gameevent.SecretPlayed) }

// SecretPlayedFromDeckParser puts a secret from the library into play.
type SecretPlayedFromDeckParser struct {
	base
	secrets *SecretConfig
}

func (p *SecretPlayedFromDeckParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.SecretPlayedFromDeck
}

func (p *SecretPlayedFromDeckParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	library, _, ok := p.helper.RemoveSingleCardFromZone(deck.Deck, event.CardID, event.EntityID, len(deck.DeckList) == 0)
	if !ok {
		p.missing(p, event, "deck")
	}
	d := deck.Clone()
	d.Deck = library
	d.Secrets = addSecret(deck.Secrets, newBoardSecret(p.secrets, state, deck, event))
	return state.WithDeck(isPlayer, d), nil
}

func (p *SecretPlayedFromDeckParser) Event() string { return string(gameevent.SecretPlayedFromDeck) }

func newBoardSecret(cfg *SecretConfig, state *gamestate.GameState, deck *gamestate.DeckState, event gameevent.GameEvent) gamestate.BoardSecret {
	playerClass := event.AdditionalData.String("playerClass")
	if playerClass == "" {
		playerClass = deck.PlayerClass
	}
	return gamestate.BoardSecret{
		EntityID:           event.EntityID,
		CardID:             event.CardID,
		AllPossibleOptions: cfg.Options(state.Metadata, playerClass),
	}
}

func addSecret(secrets []gamestate.BoardSecret, secret gamestate.BoardSecret) []gamestate.BoardSecret {
	out := make([]gamestate.BoardSecret, 0, len(secrets)+1)
	for _, s := range secrets {
		if secret.EntityID != 0 && s.EntityID == secret.EntityID {
			continue
		}
		out = append(out, s)
	}
	return append(out, secret)
}

// SecretTriggeredParser reveals a pending secret and files it away.
type SecretTriggeredParser struct{ base }

func (p *SecretTriggeredParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.SecretTriggered
}

func (p *SecretTriggeredParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	deck, isPlayer := sideDeck(state, event)
	if deck == nil {
		return state, nil
	}
	secrets, _, ok := p.helper.RemoveSecret(deck.Secrets, event.EntityID)
	if !ok {
		p.missing(p, event, "secrets")
		return state, nil
	}
	card := p.helper.BuildCard(event.CardID, event.EntityID)

	d := deck.Clone()
	d.Secrets = secrets
	d.OtherZone = p.helper.AddSingleCardToZone(deck.OtherZone, card.InZone(gamestate.ZoneSecret))
	return state.WithDeck(isPlayer, d), nil
}

func (p *SecretTriggeredParser) Event() string { return string(gameevent.SecretTriggered) }

// FreezingTrapSecretParser rules Freezing Trap out of the defender's pending
// secrets when a minion attacks on its controller's turn and nothing
// triggers.
type FreezingTrapSecretParser struct{ base }

func (p *FreezingTrapSecretParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && (event.Type == gameevent.AttackingHero || event.Type == gameevent.AttackingMinion)
}

func (p *FreezingTrapSecretParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	defender, _ := event.AdditionalData.Int("defenderControllerId")
	playerDefends := defender == event.LocalPlayer.PlayerID
	active := event.GameState.ActivePlayerID

	// secrets only trigger on the opponent's turn
	if playerDefends && active == event.LocalPlayer.PlayerID {
		p.logger.Debug("player is defender on their own turn", zap.Int("active_player_id", active))
		return state, nil
	}
	if !playerDefends && active == event.OpponentPlayer.PlayerID {
		p.logger.Debug("opponent is defender on their own turn", zap.Int("active_player_id", active))
		return state, nil
	}

	attacker := event.AdditionalData.String("attackerCardId")
	if ref := p.cards.GetCard(attacker); !ref.IsMinion() {
		p.logger.Debug("attacker is not a minion", zap.String("card_id", attacker))
		return state, nil
	}
	deck := state.Deck(playerDefends)
	if deck == nil {
		return state, nil
	}
	return state.WithDeck(playerDefends, p.helper.RemoveSecretOption(deck, cards.FreezingTrap)), nil
}

func (p *FreezingTrapSecretParser) Event() string { return "SECRET_FREEZING_TRAP" }
