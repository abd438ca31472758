package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink receives decoded game events. Both the deck tracking service and the
// battlegrounds store implement it.
type Sink interface {
	Enqueue(event gameevent.GameEvent)
}

// DecodeEvent reads one JSON line into a game event. Missing ids and
// timestamps are filled in.
func DecodeEvent(line string) (gameevent.GameEvent, error) {
	blob, err := simplejson.NewJson([]byte(line))
	if err != nil {
		return gameevent.GameEvent{}, fmt.Errorf("invalid json: %w", err)
	}
	eventType := blob.Get("type").MustString()
	if eventType == "" {
		return gameevent.GameEvent{}, fmt.Errorf("event without type")
	}

	event := gameevent.New(gameevent.EventType(eventType),
		blob.Get("cardId").MustString(),
		blob.Get("controllerId").MustInt(),
		blob.Get("entityId").MustInt(),
	)
	if id := blob.Get("id").MustString(); id != "" {
		event.ID = id
	} else {
		event.ID = uuid.NewString()
	}
	if ts := blob.Get("timestamp").MustString(); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = parsed
		}
	}
	event = event.WithPlayers(playerInfo(blob.Get("localPlayer")), playerInfo(blob.Get("opponentPlayer")))
	event.GameState.ActivePlayerID = blob.GetPath("gameState", "ActivePlayerId").MustInt()
	if data, err := blob.Get("additionalData").Map(); err == nil {
		event.AdditionalData = gameevent.AdditionalData(data)
	}
	return event, nil
}

func playerInfo(blob *simplejson.Json) gameevent.PlayerInfo {
	return gameevent.PlayerInfo{
		PlayerID: blob.Get("PlayerId").MustInt(),
		Name:     blob.Get("Name").MustString(),
		CardID:   blob.Get("CardID").MustString(),
	}
}

// EventReader tails a JSON-lines event log and fans every event out to the
// sinks, in file order.
type EventReader struct {
	path   string
	opts   TailOptions
	sinks  []Sink
	logger *zap.Logger

	decoded int
	skipped int
}

// NewEventReader creates a reader for path.
func NewEventReader(path string, opts TailOptions, sinks []Sink, logger *zap.Logger) *EventReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventReader{path: path, opts: opts, sinks: sinks, logger: logger}
}

// Run reads until end of file, or until ctx is done when following.
func (r *EventReader) Run(ctx context.Context) error {
	r.logger.Info("reading game events", zap.String("path", r.path), zap.Bool("follow", r.opts.Follow))
	err := Tail(ctx, r.path, r.opts, r.handle)
	r.logger.Info("game event reader stopped",
		zap.String("path", r.path),
		zap.Int("decoded", r.decoded),
		zap.Int("skipped", r.skipped),
	)
	return err
}

func (r *EventReader) handle(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	event, err := DecodeEvent(line)
	if err != nil {
		r.skipped++
		r.logger.Warn("skipping malformed event line", zap.Error(err))
		return
	}
	r.decoded++
	for _, sink := range r.sinks {
		sink.Enqueue(event)
	}
}

// Counts returns how many lines were decoded and skipped so far. Only
// meaningful once Run has returned.
func (r *EventReader) Counts() (decoded, skipped int) {
	return r.decoded, r.skipped
}
