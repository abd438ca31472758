package parser

import (
	"context"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
)

// GameStartParser builds the state of a new match from the registered deck.
type GameStartParser struct {
	base
	decks    DeckProvider
	deckSize int
}

func (p *GameStartParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return event.Type == gameevent.GameStart
}

func (p *GameStartParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	var list Decklist
	if p.decks != nil {
		list = p.decks.CurrentDeck()
	}
	player := gamestate.NewDeckState(list.Cards)
	player.Name = list.Name
	player.DeckString = list.DeckString
	player.HeroCardID = list.HeroCardID
	player.PlayerClass = list.PlayerClass
	if len(list.Cards) == 0 {
		player.Deck = fillers(p.deckSize)
	}
	opponent := gamestate.NewDeckState(nil)
	opponent.Deck = fillers(p.deckSize)

	// play timings restart with each match; ordering only spans one match
	next := gamestate.New()
	next.PlayerDeck = player
	next.OpponentDeck = opponent
	next.GameStarted = true
	p.logger.Info("match started",
		zap.String("deck_name", list.Name),
		zap.Int("deck_size", len(player.Deck)),
	)
	return next, nil
}

func (p *GameStartParser) Event() string { return string(gameevent.GameStart) }

func fillers(n int) []gamestate.DeckCard {
	return make([]gamestate.DeckCard, n)
}

// MatchMetadataParser records game type, format and scenario.
type MatchMetadataParser struct{ base }

func (p *MatchMetadataParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.MatchMetadata
}

func (p *MatchMetadataParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	meta := event.AdditionalData.Map("metaData")
	if meta == nil {
		return state, nil
	}
	var md gamestate.Metadata
	md.GameType, _ = meta.Int("GameType")
	md.FormatType, _ = meta.Int("FormatType")
	md.ScenarioID, _ = meta.Int("ScenarioID")
	next := state.Clone()
	next.Metadata = md
	return next, nil
}

func (p *MatchMetadataParser) Event() string { return string(gameevent.MatchMetadata) }

// MulliganOverParser marks the end of the mulligan phase.
type MulliganOverParser struct{ base }

func (p *MulliganOverParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.MulliganDone
}

func (p *MulliganOverParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	next := state.Clone()
	next.MulliganOver = true
	return next, nil
}

func (p *MulliganOverParser) Event() string { return string(gameevent.MulliganDone) }

// TurnStartParser advances the turn and clears per-turn counters.
type TurnStartParser struct{ base }

func (p *TurnStartParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return state != nil && event.Type == gameevent.TurnStart
}

func (p *TurnStartParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	next := state.Clone()
	if turn, ok := event.AdditionalData.Int("turnNumber"); ok {
		next.CurrentTurn = turn
	} else {
		next.CurrentTurn = state.CurrentTurn + 1
	}
	for _, isPlayer := range []bool{true, false} {
		deck := next.Deck(isPlayer)
		if deck == nil {
			continue
		}
		d := deck.Clone()
		d.CardsPlayedThisTurn = nil
		d.ElementalsPlayedThisTurn = 0
		next = next.WithDeck(isPlayer, d)
	}
	return next, nil
}

func (p *TurnStartParser) Event() string { return string(gameevent.TurnStart) }

// GameEndParser resets the state. Events still queued for the finished match
// then find no deck and become no-ops.
type GameEndParser struct{ base }

func (p *GameEndParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return event.Type == gameevent.GameEnd
}

func (p *GameEndParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx Context) (*gamestate.GameState, error) {
	return gamestate.New(), nil
}

func (p *GameEndParser) Event() string { return string(gameevent.GameEnd) }
