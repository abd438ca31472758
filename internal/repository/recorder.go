package repository

import (
	"context"
	"sync"
	"time"

	"github.com/firestone-hs/decktracker/internal/decktracker"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchRecorder is an emitter that saves a summary of each match when it
// ends. Saves run in the background so the dispatch loop never waits on the
// database.
type MatchRecorder struct {
	store   Store
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	last *gamestate.GameState
	wg   sync.WaitGroup
}

// NewMatchRecorder creates a recorder writing to store.
func NewMatchRecorder(store Store, logger *zap.Logger) *MatchRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchRecorder{store: store, logger: logger, timeout: 5 * time.Second, now: time.Now}
}

// Emit tracks the latest in-match snapshot and saves it on game end.
func (r *MatchRecorder) Emit(ctx context.Context, n decktracker.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.Event.Name != string(gameevent.GameEnd) {
		if n.State != nil && n.State.GameStarted {
			r.last = n.State
		}
		return
	}
	if r.last == nil {
		return
	}
	record := Summarize(r.last, r.now())
	r.last = nil

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		saveCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.SaveMatch(saveCtx, record); err != nil {
			r.logger.Error("failed to save match", zap.String("match_id", record.ID), zap.Error(err))
			return
		}
		r.logger.Info("match saved",
			zap.String("match_id", record.ID),
			zap.String("deck_name", record.DeckName),
			zap.Int("turns", record.Turns),
		)
	}()
}

// Flush waits for pending saves.
func (r *MatchRecorder) Flush() {
	r.wg.Wait()
}

// Summarize builds a match record from the last snapshot of a match.
func Summarize(state *gamestate.GameState, endedAt time.Time) MatchRecord {
	record := MatchRecord{
		ID:         uuid.NewString(),
		EndedAt:    endedAt.UTC(),
		GameType:   state.Metadata.GameType,
		FormatType: state.Metadata.FormatType,
		ScenarioID: state.Metadata.ScenarioID,
		Turns:      state.CurrentTurn,
	}
	if deck := state.PlayerDeck; deck != nil {
		record.DeckName = deck.Name
		record.DeckString = deck.DeckString
		record.PlayerClass = deck.PlayerClass
		record.PlayerCardsPlayed = len(deck.CardsPlayedThisMatch)
	}
	if deck := state.OpponentDeck; deck != nil {
		record.OpponentCardsPlayed = len(deck.CardsPlayedThisMatch)
	}
	return record
}
