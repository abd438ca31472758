// Package decktracker runs the game-state pipeline: telemetry events are
// queued, folded through the ordered parser catalogue and the resulting
// snapshots are broadcast to the registered emitters.
package decktracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/firestone-hs/decktracker/internal/decktracker/parser"
	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/firestone-hs/decktracker/internal/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrNilState is logged when the loop finds no current state.
	ErrNilState = errors.New("no current game state")
	// ErrParserPanic wraps a panic recovered from a parser.
	ErrParserPanic = errors.New("parser panicked")
)

// NotificationMode controls how many notifications one event produces.
type NotificationMode string

const (
	// NotifyPerParser emits one notification per parser that ran.
	NotifyPerParser NotificationMode = "per-parser"
	// NotifyPerEvent emits a single notification per event.
	NotifyPerEvent NotificationMode = "per-event"
)

// InspectName is the inspector probe registered by the service.
const InspectName = "decktracker"

// ServiceConfig holds the service dependencies.
type ServiceConfig struct {
	Parsers   []parser.Parser
	Holder    *DeckHolder
	Bus       *Bus
	Emitters  []Emitter
	Inspector *diagnostics.Inspector
	Reports   diagnostics.Sink
	Tracer    trace.Tracer
	Logger    *zap.Logger

	// RequireDecklist holds events in the queue until Holder has a deck.
	RequireDecklist  bool
	NotificationMode NotificationMode
	// OnEvent sees every event before it is parsed.
	OnEvent func(ctx context.Context, event gameevent.GameEvent)
}

// Service is the single consumer of the event queue.
type Service struct {
	queue     *pipeline.Queue[gameevent.GameEvent]
	parsers   []parser.Parser
	holder    *DeckHolder
	bus       *Bus
	reports   diagnostics.Sink
	tracer    trace.Tracer
	logger    *zap.Logger
	mode      NotificationMode
	requireDL bool
	onEvent   func(ctx context.Context, event gameevent.GameEvent)

	mu       sync.RWMutex
	state    *gamestate.GameState
	emitters []Emitter

	processed atomic.Int64
	failures  atomic.Int64
}

// NewService wires a service. The bus, when given, is always the first
// emitter.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/firestone-hs/decktracker/internal/decktracker")
	}
	mode := cfg.NotificationMode
	if mode == "" {
		mode = NotifyPerParser
	}
	s := &Service{
		queue:     pipeline.NewQueue[gameevent.GameEvent](),
		parsers:   cfg.Parsers,
		holder:    cfg.Holder,
		bus:       cfg.Bus,
		reports:   cfg.Reports,
		tracer:    tracer,
		logger:    logger,
		mode:      mode,
		requireDL: cfg.RequireDecklist,
		onEvent:   cfg.OnEvent,
		state:     gamestate.New(),
	}
	s.SetEmitters(cfg.Emitters)
	if s.holder != nil {
		s.holder.SetOnChange(s.queue.Notify)
	}
	cfg.Inspector.Register(InspectName, s.inspect)
	return s
}

// Enqueue appends an event for processing. A metadata event may restore the
// previous deck so that a rematch is not held back by the guard. The event is
// queued first: if the previous match has not ended yet, the consumer finds
// the metadata in the queue when it resets the holder.
func (s *Service) Enqueue(event gameevent.GameEvent) {
	s.queue.Enqueue(event)
	if scenarioID, ok := scenarioOf(event); ok && s.holder != nil {
		s.holder.ObserveScenario(scenarioID)
	}
}

func scenarioOf(event gameevent.GameEvent) (int, bool) {
	if event.Type != gameevent.MatchMetadata {
		return 0, false
	}
	return event.AdditionalData.Map("metaData").Int("ScenarioID")
}

// restoreQueuedRematch looks for the metadata of a match already waiting in
// the queue and lets the holder restore the previous deck for it.
func (s *Service) restoreQueuedRematch() {
	queued, ok := s.queue.Find(func(e gameevent.GameEvent) bool {
		return e.Type == gameevent.MatchMetadata
	})
	if !ok {
		return
	}
	if scenarioID, ok := scenarioOf(queued); ok {
		s.holder.ObserveScenario(scenarioID)
	}
}

// SetEmitters replaces the external emitters.
func (s *Service) SetEmitters(emitters []Emitter) {
	list := make([]Emitter, 0, len(emitters)+1)
	if s.bus != nil {
		list = append(list, s.bus)
	}
	for _, e := range emitters {
		if e != nil {
			list = append(list, e)
		}
	}
	s.mu.Lock()
	s.emitters = list
	s.mu.Unlock()
	s.logger.Info("emitters configured", zap.Int("count", len(list)))
}

// State returns the current snapshot.
func (s *Service) State() *gamestate.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(state *gamestate.GameState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// QueueLen returns the number of events waiting.
func (s *Service) QueueLen() int {
	return s.queue.Len()
}

// Run drains the queue whenever it is woken until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("dispatch loop started")
	defer s.logger.Info("dispatch loop stopped")
	for {
		s.Drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Ready():
		}
	}
}

// Drain processes queued events while the guard holds and returns how many
// were handled.
func (s *Service) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil && s.ready() {
		if !s.processNext(ctx) {
			break
		}
		n++
	}
	return n
}

func (s *Service) ready() bool {
	return !s.requireDL || s.holder == nil || s.holder.Ready()
}

func (s *Service) processNext(ctx context.Context) bool {
	event, ok := s.queue.Dequeue()
	if !ok {
		return false
	}
	var pctx parser.Context
	if next, ok := s.queue.Peek(); ok {
		pctx = parser.ContextFromLookahead(next)
	}
	s.processEvent(ctx, event, pctx)
	return true
}

func (s *Service) processEvent(ctx context.Context, event gameevent.GameEvent, pctx parser.Context) {
	ctx, span := s.tracer.Start(ctx, "decktracker.process_event", trace.WithAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.String("event.id", event.ID),
	))
	defer span.End()
	s.processed.Add(1)

	if s.onEvent != nil {
		s.onEvent(ctx, event)
	}

	state := s.State()
	if state == nil {
		s.logger.Error("skipping event", zap.String("event_type", string(event.Type)), zap.Error(ErrNilState))
		span.SetStatus(codes.Error, ErrNilState.Error())
		return
	}
	metadata := state.Metadata

	var notifications []Notification
	for _, p := range s.parsers {
		applied, next, err := s.runParser(ctx, p, state, event, pctx)
		if err != nil {
			s.failures.Add(1)
			span.RecordError(err)
			s.logger.Error("parser failed",
				zap.String("parser", p.Event()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
			s.report(ctx, p, event, err)
			continue
		}
		if !applied || next == nil {
			continue
		}
		state = EnrichDynamicZones(next)
		s.setState(state)
		notifications = append(notifications, Notification{
			Event: NotificationEvent{Name: p.Event()},
			State: state,
		})
	}
	span.SetAttributes(attribute.Int("parsers.applied", len(notifications)))

	if event.Type == gameevent.GameEnd && s.holder != nil {
		vsAI := metadata.GameType == gamestate.GameTypeVsAI
		s.holder.Reset(vsAI)
		if vsAI {
			s.restoreQueuedRematch()
		}
	}

	if s.mode == NotifyPerEvent && len(notifications) > 0 {
		notifications = []Notification{{
			Event: NotificationEvent{Name: string(event.Type)},
			State: notifications[len(notifications)-1].State,
		}}
	}
	s.emit(ctx, notifications)
}

// runParser contains a single parser so that its failure leaves the pass intact.
func (s *Service) runParser(ctx context.Context, p parser.Parser, state *gamestate.GameState, event gameevent.GameEvent, pctx parser.Context) (applied bool, next *gamestate.GameState, err error) {
	defer func() {
		if r := recover(); r != nil {
			applied, next, err = false, nil, fmt.Errorf("%w: %s: %v", ErrParserPanic, p.Event(), r)
		}
	}()
	if !p.Applies(event, state) {
		return false, nil, nil
	}
	next, err = p.Parse(ctx, state, event, pctx)
	if err != nil {
		return false, nil, fmt.Errorf("%s: %w", p.Event(), err)
	}
	return true, next, nil
}

func (s *Service) emit(ctx context.Context, notifications []Notification) {
	if len(notifications) == 0 {
		return
	}
	s.mu.RLock()
	emitters := s.emitters
	s.mu.RUnlock()
	for _, n := range notifications {
		s.logger.Debug("emitting notification", zap.String("event", n.Event.Name), zap.Int("emitters", len(emitters)))
		for _, e := range emitters {
			e.Emit(ctx, n)
		}
	}
}

func (s *Service) report(ctx context.Context, p parser.Parser, event gameevent.GameEvent, err error) {
	if s.reports == nil {
		return
	}
	s.reports.Capture(ctx, diagnostics.NewReport(diagnostics.KindParserFailure, "parser failed", map[string]any{
		"parser":    p.Event(),
		"eventType": string(event.Type),
		"eventId":   event.ID,
		"error":     err.Error(),
	}))
}

func (s *Service) inspect() any {
	deckReady := s.holder == nil || s.holder.Ready()
	return map[string]any{
		"queueDepth": s.queue.Len(),
		"processed":  s.processed.Load(),
		"failures":   s.failures.Load(),
		"deckReady":  deckReady,
		"parsers":    len(s.parsers),
		"state":      s.State(),
	}
}
