package battlegrounds

import (
	"context"
	"fmt"
	"sync"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/pipeline"
	"go.uber.org/zap"
)

// Listener receives every new battlegrounds snapshot.
type Listener func(ctx context.Context, state *State)

// Store owns the battlegrounds state. Like the deck tracker it has a single
// consumer draining its own queue.
type Store struct {
	queue   *pipeline.Queue[gameevent.GameEvent]
	parsers []Parser
	logger  *zap.Logger

	mu        sync.RWMutex
	state     *State
	listeners []Listener
}

// NewStore creates a store running the given parsers.
func NewStore(parsers []Parser, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		queue:   pipeline.NewQueue[gameevent.GameEvent](),
		parsers: parsers,
		logger:  logger,
		state:   NewState(),
	}
}

// Subscribe registers a listener.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Enqueue appends an event.
func (s *Store) Enqueue(event gameevent.GameEvent) {
	s.queue.Enqueue(event)
}

// State returns the current snapshot.
func (s *Store) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run drains the queue until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	for {
		s.Drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Ready():
		}
	}
}

// Drain processes every queued event.
func (s *Store) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		event, ok := s.queue.Dequeue()
		if !ok {
			break
		}
		s.process(ctx, event)
		n++
	}
	return n
}

func (s *Store) process(ctx context.Context, event gameevent.GameEvent) {
	state := s.State()
	changed := false
	for _, p := range s.parsers {
		next, err := s.run(ctx, p, state, event)
		if err != nil {
			s.logger.Error("battlegrounds parser failed",
				zap.String("parser", p.Name()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
			continue
		}
		if next != nil && next != state {
			state = next
			changed = true
		}
	}
	if !changed {
		return
	}

	s.mu.Lock()
	s.state = state
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(ctx, state)
	}
}

func (s *Store) run(ctx context.Context, p Parser, state *State, event gameevent.GameEvent) (next *State, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = nil, fmt.Errorf("%s panicked: %v", p.Name(), r)
		}
	}()
	if !p.Applies(event, state) {
		return nil, nil
	}
	return p.Parse(ctx, state, event)
}
