// Package parser holds the ordered catalogue of game-state reducers. Each
// parser reacts to one kind of telemetry event and derives the next snapshot
// from the current one without touching the input.
package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
)

// Parser is one reducer in the catalogue.
type Parser interface {
	// Applies reports whether the parser handles event. It must not mutate
	// anything and must tolerate a partially populated state.
	Applies(event gameevent.GameEvent, state *gamestate.GameState) bool
	// Parse derives the next snapshot. On error the caller keeps state.
	Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error)
	// Event labels the notifications emitted after this parser ran.
	Event() string
}

// Context carries what the dispatch loop learned by looking at the event
// queued right after the one being parsed.
type Context struct {
	SecretWillTrigger *SecretWillTrigger
	MinionsWillDie    []MinionRef
}

// SecretWillTrigger announces a secret about to react to the current event.
type SecretWillTrigger struct {
	CardID             string
	ReactingToCardID   string
	ReactingToEntityID int
}

// MinionRef names one minion by card and entity.
type MinionRef struct {
	CardID   string
	EntityID int
}

// ContextFromLookahead builds the parse context from the next queued event.
// Events that are not look-ahead events yield an empty context.
func ContextFromLookahead(next gameevent.GameEvent) Context {
	switch next.Type {
	case gameevent.SecretWillTrigger:
		entityID, _ := next.AdditionalData.Int("reactingToEntityId")
		return Context{SecretWillTrigger: &SecretWillTrigger{
			CardID:             next.CardID,
			ReactingToCardID:   next.AdditionalData.String("reactingToCardId"),
			ReactingToEntityID: entityID,
		}}
	case gameevent.MinionsWillDie:
		var refs []MinionRef
		for _, m := range next.AdditionalData.Maps("deadMinions") {
			entityID, _ := m.Int("EntityId")
			refs = append(refs, MinionRef{CardID: m.String("CardId"), EntityID: entityID})
		}
		return Context{MinionsWillDie: refs}
	default:
		return Context{}
	}
}

// Decklist is the registered deck known when a match starts.
type Decklist struct {
	Name        string
	DeckString  string
	HeroCardID  string
	PlayerClass string
	Cards       []gamestate.DeckCard
}

// DeckProvider exposes the deck the local player queued with.
type DeckProvider interface {
	CurrentDeck() Decklist
}

// Deps are the read-only collaborators shared by the catalogue.
type Deps struct {
	Cards    cards.Lookup
	Decks    DeckProvider
	Secrets  *SecretConfig
	Special  *SpecialCards
	DeckSize int
	Logger   *zap.Logger
}

// DefaultDeckSize is the number of unknown cards seeded into a deck whose
// list is not known.
const DefaultDeckSize = 30

// Catalogue returns every parser in dispatch order. The order is part of the
// contract: parsers matching the same event run in this sequence, each seeing
// the result of the previous one.
func Catalogue(deps Deps) []Parser {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.DeckSize <= 0 {
		deps.DeckSize = DefaultDeckSize
	}
	if deps.Secrets == nil {
		deps.Secrets = NewSecretConfig(nil, deps.Logger)
	}
	if deps.Special == nil {
		deps.Special = DefaultSpecialCards(deps.Logger)
	}
	b := base{
		helper: NewHelper(deps.Cards, deps.Logger),
		cards:  deps.Cards,
		logger: deps.Logger,
	}
	return []Parser{
		&GameStartParser{base: b, decks: deps.Decks, deckSize: deps.DeckSize},
		&MatchMetadataParser{base: b},
		&MulliganOverParser{base: b},
		&TurnStartParser{base: b},
		&CardDrawParser{base: b},
		&ReceiveCardInHandParser{base: b},
		&CardBackToDeckParser{base: b},
		&CreateCardInDeckParser{base: b},
		&CardRemovedFromDeckParser{base: b},
		&CardRemovedFromHandParser{base: b},
		&CardPlayedFromHandParser{base: b, special: deps.Special},
		&SecretPlayedFromHandParser{base: b, secrets: deps.Secrets},
		&EndOfEchoInHandParser{base: b},
		&DiscardedCardParser{base: b},
		&CardRecruitedParser{base: b},
		&MinionSummonedParser{base: b},
		&BurnedCardParser{base: b},
		&SecretPlayedFromDeckParser{base: b, secrets: deps.Secrets},
		&CardChangedOnBoardParser{base: b},
		&MinionDiedParser{base: b},
		&SecretTriggeredParser{base: b},
		&FreezingTrapSecretParser{base: b},
		&GameEndParser{base: b},
	}
}

// base bundles the collaborators every parser embeds.
type base struct {
	helper *Helper
	cards  cards.Lookup
	logger *zap.Logger
}

// sideDeck returns the deck of the event's controller, or nil when the match
// has no deck for that side.
func sideDeck(state *gamestate.GameState, event gameevent.GameEvent) (*gamestate.DeckState, bool) {
	isPlayer := event.IsPlayer()
	return state.Deck(isPlayer), isPlayer
}

// missing logs a lookup miss at warn level.
func (b base) missing(p Parser, event gameevent.GameEvent, zone string) {
	b.logger.Warn("card not found in zone",
		zap.String("parser", p.Event()),
		zap.String("event_type", string(event.Type)),
		zap.String("zone", zone),
		zap.String("card_id", event.CardID),
		zap.Int("entity_id", event.EntityID),
	)
}

func side(isPlayer bool) string {
	if isPlayer {
		return gamestate.SidePlayer
	}
	return gamestate.SideOpponent
}

func appendCard(cards []gamestate.DeckCard, card gamestate.DeckCard) []gamestate.DeckCard {
	out := make([]gamestate.DeckCard, 0, len(cards)+1)
	out = append(out, cards...)
	return append(out, card)
}

func appendShort(cards []gamestate.ShortCard, card gamestate.ShortCard) []gamestate.ShortCard {
	out := make([]gamestate.ShortCard, 0, len(cards)+1)
	out = append(out, cards...)
	return append(out, card)
}
