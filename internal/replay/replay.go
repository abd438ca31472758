// Package replay records the events of each match so it can be fed through
// the trackers again offline.
package replay

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileExtension is appended to the match id to name replay files.
const FileExtension = ".replay"

const formatVersion = 1

func init() {
	// concrete types found inside AdditionalData
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(gameevent.AdditionalData{})
	gob.Register(json.Number(""))
}

// Replay is the ordered list of events of one match.
type Replay struct {
	MatchID      string
	RecordedAt   time.Time
	Events       []gameevent.GameEvent
	CurrentIndex int
	mu           sync.RWMutex
}

// New creates an empty replay.
func New(matchID string) *Replay {
	return &Replay{MatchID: matchID, RecordedAt: time.Now()}
}

// Record appends an event.
func (r *Replay) Record(event gameevent.GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Start rewinds to the first event.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the next event, or false once every event was returned.
func (r *Replay) Next() (gameevent.GameEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex >= len(r.Events) {
		return gameevent.GameEvent{}, false
	}
	event := r.Events[r.CurrentIndex]
	r.CurrentIndex++
	return event, true
}

// Size returns the number of recorded events.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Events)
}

// Path returns the file a replay of matchID is stored in.
func Path(directory, matchID string) string {
	return filepath.Join(directory, matchID+FileExtension)
}

// SaveToFile writes the replay, gzip-compressed, into directory.
func (r *Replay) SaveToFile(directory string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	filename := Path(directory, r.MatchID)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	meta := metadata{
		MatchID:    r.MatchID,
		RecordedAt: r.RecordedAt,
		Version:    formatVersion,
		EventCount: len(r.Events),
	}
	if err := encoder.Encode(&meta); err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range r.Events {
		if err := encoder.Encode(&r.Events[i]); err != nil {
			return "", fmt.Errorf("failed to encode event %d: %w", i, err)
		}
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to flush replay: %w", err)
	}
	return filename, nil
}

// LoadFile reads a replay written by SaveToFile.
func LoadFile(filename string) (*Replay, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)
	var meta metadata
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if meta.Version != formatVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}

	r := &Replay{MatchID: meta.MatchID, RecordedAt: meta.RecordedAt, Events: make([]gameevent.GameEvent, 0, meta.EventCount)}
	for i := 0; i < meta.EventCount; i++ {
		var event gameevent.GameEvent
		if err := decoder.Decode(&event); err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", i, err)
		}
		r.Events = append(r.Events, event)
	}
	return r, nil
}

type metadata struct {
	MatchID    string
	RecordedAt time.Time
	Version    int
	EventCount int
}

// Recorder keeps one replay per match. It is driven by the dispatch loop's
// event hook, so events arrive in processing order.
type Recorder struct {
	logger  *zap.Logger
	saveDir string

	mu      sync.Mutex
	current *Replay
	saved   []string
}

// NewRecorder creates a recorder writing into saveDir.
func NewRecorder(saveDir string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger, saveDir: saveDir}
}

// OnEvent records event. GAME_START opens a new replay and GAME_END writes it.
func (rr *Recorder) OnEvent(_ context.Context, event gameevent.GameEvent) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if event.Type == gameevent.GameStart || rr.current == nil {
		if rr.current != nil && rr.current.Size() > 0 {
			rr.logger.Warn("match started before the previous one ended, discarding replay",
				zap.String("match_id", rr.current.MatchID),
				zap.Int("event_count", rr.current.Size()),
			)
		}
		rr.current = New(uuid.NewString())
		rr.logger.Debug("started replay recording", zap.String("match_id", rr.current.MatchID))
	}
	rr.current.Record(event)

	if event.Type != gameevent.GameEnd {
		return
	}
	replay := rr.current
	rr.current = nil
	filename, err := replay.SaveToFile(rr.saveDir)
	if err != nil {
		rr.logger.Error("failed to save replay", zap.String("match_id", replay.MatchID), zap.Error(err))
		return
	}
	rr.saved = append(rr.saved, filename)
	rr.logger.Info("saved replay to disk",
		zap.String("match_id", replay.MatchID),
		zap.Int("event_count", replay.Size()),
		zap.String("file", filename),
	)
}

// Saved lists the files written so far.
func (rr *Recorder) Saved() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]string(nil), rr.saved...)
}
