package decktracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/decktracker/parser"
	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicParser struct{}

func (panicParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return event.Type == gameevent.CardPlayed
}

func (panicParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx parser.Context) (*gamestate.GameState, error) {
	panic("boom")
}

func (panicParser) Event() string { return "PANIC" }

type failingParser struct{}

func (failingParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return event.Type == gameevent.CardPlayed
}

func (failingParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx parser.Context) (*gamestate.GameState, error) {
	return state.Clone(), errors.New("bad payload")
}

func (failingParser) Event() string { return "FAILING" }

// echoParser matches game start and changes nothing.
type echoParser struct{}

func (echoParser) Applies(event gameevent.GameEvent, state *gamestate.GameState) bool {
	return event.Type == gameevent.GameStart
}

func (echoParser) Parse(ctx context.Context, state *gamestate.GameState, event gameevent.GameEvent, pctx parser.Context) (*gamestate.GameState, error) {
	return state, nil
}

func (echoParser) Event() string { return "ECHO" }

type captureSink struct {
	mu      sync.Mutex
	reports []diagnostics.Report
}

func (c *captureSink) Capture(ctx context.Context, report diagnostics.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, report)
}

func TestServiceGuardHoldsEvents(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	assert.Equal(t, 0, rig.service.Drain(ctx))
	assert.Equal(t, 1, rig.service.QueueLen())
	assert.Nil(t, rig.service.State().PlayerDeck)

	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)
	assert.Equal(t, 1, rig.service.Drain(ctx))
	assert.Equal(t, 0, rig.service.QueueLen())
	require.NotNil(t, rig.service.State().PlayerDeck)
	assert.Len(t, rig.service.State().PlayerDeck.Deck, 4)
	assert.Len(t, rig.service.State().OpponentDeck.Deck, parser.DefaultDeckSize)
}

func TestServiceMinionPlayScenario(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeRanked, 2))
	rig.service.Enqueue(cardEvent(gameevent.CardDrawFromDeck, "MINION_A", playerID, 10))
	rig.service.Enqueue(cardEvent(gameevent.CardPlayed, "MINION_A", playerID, 10))
	assert.Equal(t, 4, rig.service.Drain(ctx))

	assert.Equal(t, []string{
		string(gameevent.GameStart),
		string(gameevent.MatchMetadata),
		string(gameevent.CardDrawFromDeck),
		string(gameevent.CardPlayed),
	}, rig.emitted.Names())

	state := rig.service.State()
	require.NoError(t, state.ValidateZones())
	assert.Equal(t, gamestate.GameTypeRanked, state.Metadata.GameType)
	deck := state.PlayerDeck
	assert.Empty(t, deck.Hand)
	assert.Len(t, deck.Deck, 3)
	require.Len(t, deck.Board, 1)
	assert.Equal(t, 10, deck.Board[0].EntityID)
	assert.Equal(t, 1, deck.Board[0].PlayTiming)

	remaining, ok := zoneByID(deck.DynamicZones, ZoneRemaining)
	require.True(t, ok)
	assert.Len(t, remaining.Cards, 3)

	// every notification carries the snapshot after its parser
	last := rig.emitted.all[len(rig.emitted.all)-1]
	assert.Same(t, state, last.State)
	assert.Nil(t, rig.emitted.all[0].State.PlayerDeck.Board)
}

func TestServiceTransformKeepsRemainingCards(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeRanked, 2))
	rig.service.Enqueue(cardEvent(gameevent.CardDrawFromDeck, "MINION_A", playerID, 4))
	rig.service.Enqueue(cardEvent(gameevent.CardPlayed, "MINION_A", playerID, 4))
	rig.service.Enqueue(cardEvent(gameevent.CardChangedOnBoard, "ELEMENTAL_C", playerID, 4))
	assert.Equal(t, 5, rig.service.Drain(ctx))

	state := rig.service.State()
	require.NoError(t, state.ValidateZones())
	deck := state.PlayerDeck
	require.Len(t, deck.Board, 1)
	assert.Equal(t, "ELEMENTAL_C", deck.Board[0].CardID)

	var library []string
	for _, c := range deck.Deck {
		library = append(library, c.CardID)
	}
	assert.ElementsMatch(t, []string{"MINION_A", "SPELL_B", "ELEMENTAL_C"}, library)

	remaining, ok := zoneByID(deck.DynamicZones, ZoneRemaining)
	require.True(t, ok)
	var ids []string
	for _, c := range remaining.Cards {
		ids = append(ids, c.CardID)
	}
	// one MINION_A was played; the ELEMENTAL_C it became never came from the list
	assert.ElementsMatch(t, []string{"MINION_A", "SPELL_B", "ELEMENTAL_C"}, ids)
}

func TestServiceCounterspellLookahead(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(cardEvent(gameevent.CardDrawFromDeck, "SPELL_B", playerID, 20))
	rig.service.Enqueue(cardEvent(gameevent.CardPlayed, "SPELL_B", playerID, 20))
	rig.service.Enqueue(cardEvent(gameevent.SecretWillTrigger, cards.Counterspell, opponentID, 30).
		WithData("reactingToEntityId", float64(20)).
		WithData("reactingToCardId", "SPELL_B"))
	assert.Equal(t, 4, rig.service.Drain(ctx))

	deck := rig.service.State().PlayerDeck
	assert.Empty(t, deck.Hand)
	assert.Empty(t, deck.Board)
	assert.Empty(t, deck.OtherZone)
	assert.Empty(t, deck.CardsPlayedThisMatch)
	assert.Empty(t, deck.SpellsPlayedThisMatch)
	assert.Empty(t, rig.service.State().CardsPlayedThisMatch)
}

func TestServiceParserFailureIsContained(t *testing.T) {
	sink := &captureSink{}
	rig := newTestRig(t, func(cfg *ServiceConfig) {
		cfg.Parsers = append([]parser.Parser{panicParser{}, failingParser{}}, cfg.Parsers...)
		cfg.Reports = sink
	})
	ctx := context.Background()
	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(cardEvent(gameevent.CardDrawFromDeck, "MINION_A", playerID, 10))
	rig.service.Enqueue(cardEvent(gameevent.CardPlayed, "MINION_A", playerID, 10))
	assert.Equal(t, 3, rig.service.Drain(ctx))

	state := rig.service.State()
	assert.Len(t, state.PlayerDeck.Board, 1, "later parsers still ran")
	assert.NotContains(t, rig.emitted.Names(), "PANIC")
	assert.NotContains(t, rig.emitted.Names(), "FAILING")

	require.Len(t, sink.reports, 2)
	assert.Equal(t, diagnostics.KindParserFailure, sink.reports[0].Kind)
	assert.Equal(t, "PANIC", sink.reports[0].Data["parser"])
	assert.Equal(t, "FAILING", sink.reports[1].Data["parser"])
}

func TestServiceNotificationModes(t *testing.T) {
	withEcho := func(mode NotificationMode) func(*ServiceConfig) {
		return func(cfg *ServiceConfig) {
			cfg.Parsers = append(cfg.Parsers, echoParser{})
			cfg.NotificationMode = mode
			cfg.RequireDecklist = false
		}
	}
	ctx := context.Background()

	perParser := newTestRig(t, withEcho(NotifyPerParser))
	perParser.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	perParser.service.Drain(ctx)
	assert.Equal(t, []string{string(gameevent.GameStart), "ECHO"}, perParser.emitted.Names())

	perEvent := newTestRig(t, withEcho(NotifyPerEvent))
	perEvent.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	perEvent.service.Enqueue(cardEvent(gameevent.SceneChanged, "", 0, 0))
	perEvent.service.Drain(ctx)
	assert.Equal(t, []string{string(gameevent.GameStart)}, perEvent.emitted.Names())
}

func TestServiceGameEndKeepsDeckAgainstAI(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.holder.SetDeck("Practice", testDeckstring(t), 3141)

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeVsAI, 3141))
	rig.service.Enqueue(cardEvent(gameevent.GameEnd, "", 0, 0))
	assert.Equal(t, 3, rig.service.Drain(ctx))

	assert.Equal(t, gamestate.New(), rig.service.State())
	assert.False(t, rig.holder.Ready())
	_, ok := rig.holder.Previous()
	assert.True(t, ok)

	// stale events for the finished match are held, then become no-ops
	rig.service.Enqueue(cardEvent(gameevent.CardPlayed, "MINION_A", playerID, 10))
	assert.Equal(t, 0, rig.service.Drain(ctx))

	rig.service.Enqueue(metadataEvent(gamestate.GameTypeVsAI, 3141))
	assert.True(t, rig.holder.Ready(), "rematch restores the previous deck")
	assert.Equal(t, 2, rig.service.Drain(ctx))
	assert.Nil(t, rig.service.State().PlayerDeck)
}

func TestServiceRematchQueuedBeforeGameEnd(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.holder.SetDeck("Practice", testDeckstring(t), 3141)

	// the rematch arrives in the same burst as the end of the first match
	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeVsAI, 3141))
	rig.service.Enqueue(cardEvent(gameevent.GameEnd, "", 0, 0))
	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeVsAI, 3141))

	assert.Equal(t, 5, rig.service.Drain(ctx))
	assert.Equal(t, 0, rig.service.QueueLen())
	assert.True(t, rig.holder.Ready())
	assert.Equal(t, "Practice", rig.holder.Current().Name)

	state := rig.service.State()
	require.NotNil(t, state.PlayerDeck)
	assert.Len(t, state.PlayerDeck.Deck, 4)
	assert.Equal(t, gamestate.GameTypeVsAI, state.Metadata.GameType)
}

func TestServiceRematchOnOtherScenarioWaitsForDeck(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.holder.SetDeck("Practice", testDeckstring(t), 3141)

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeVsAI, 3141))
	rig.service.Enqueue(cardEvent(gameevent.GameEnd, "", 0, 0))
	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeVsAI, 2718))

	assert.Equal(t, 3, rig.service.Drain(ctx))
	assert.False(t, rig.holder.Ready())
	assert.Equal(t, 2, rig.service.QueueLen())
}

func TestServiceGameEndForgetsRankedDeck(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)
	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(metadataEvent(gamestate.GameTypeRanked, 2))
	rig.service.Enqueue(cardEvent(gameevent.GameEnd, "", 0, 0))
	rig.service.Drain(context.Background())

	_, ok := rig.holder.Previous()
	assert.False(t, ok)
}

func TestServiceNilState(t *testing.T) {
	rig := newTestRig(t, func(cfg *ServiceConfig) { cfg.RequireDecklist = false })
	rig.service.setState(nil)

	rig.service.Enqueue(cardEvent(gameevent.CardPlayed, "MINION_A", playerID, 10))
	assert.NotPanics(t, func() {
		assert.Equal(t, 1, rig.service.Drain(context.Background()))
	})
	assert.Nil(t, rig.service.State())
	assert.Empty(t, rig.emitted.Names())
}

func TestServiceEmitters(t *testing.T) {
	rig := newTestRig(t, func(cfg *ServiceConfig) { cfg.RequireDecklist = false })
	var onBus []string
	rig.bus.Subscribe(func(n Notification) { onBus = append(onBus, n.Event.Name) })

	rig.service.SetEmitters(nil)
	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Drain(context.Background())

	assert.Empty(t, rig.emitted.Names())
	assert.Equal(t, []string{string(gameevent.GameStart)}, onBus)

	var forwarded int
	rig.service.SetEmitters([]Emitter{EmitterFunc(func(ctx context.Context, n Notification) { forwarded++ })})
	rig.service.Enqueue(cardEvent(gameevent.MulliganDone, "", 0, 0))
	rig.service.Drain(context.Background())
	assert.Equal(t, 1, forwarded)
	assert.Len(t, onBus, 2)
}

func TestServiceOnEventAndInspector(t *testing.T) {
	inspector := diagnostics.NewInspector()
	var seen []gameevent.EventType
	rig := newTestRig(t, func(cfg *ServiceConfig) {
		cfg.Inspector = inspector
		cfg.RequireDecklist = false
		cfg.OnEvent = func(ctx context.Context, event gameevent.GameEvent) { seen = append(seen, event.Type) }
	})
	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	rig.service.Enqueue(cardEvent(gameevent.SceneChanged, "", 0, 0))
	rig.service.Drain(context.Background())

	assert.Equal(t, []gameevent.EventType{gameevent.GameStart, gameevent.SceneChanged}, seen)
	snapshot, ok := inspector.Snapshot()[InspectName].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(2), snapshot["processed"])
	assert.Equal(t, 0, snapshot["queueDepth"])
}

func TestServiceRunWakesOnDeck(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.service.Run(ctx) }()

	rig.service.Enqueue(cardEvent(gameevent.GameStart, "", 0, 0))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, rig.service.State().GameStarted, "held until a deck is known")

	rig.holder.SetDeck("Face Hunter", testDeckstring(t), 2)
	require.Eventually(t, func() bool { return rig.service.State().GameStarted }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
