package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type collectingSink struct {
	mu     sync.Mutex
	events []gameevent.GameEvent
}

func (s *collectingSink) Enqueue(event gameevent.GameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type deckCall struct {
	name, deckString string
}

type recordingHolder struct {
	calls []deckCall
}

func (h *recordingHolder) SetDeck(name, deckString string, _ int) {
	h.calls = append(h.calls, deckCall{name: name, deckString: deckString})
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent(`{"type":"CARD_PLAYED","cardId":"EX1_611","controllerId":1,"entityId":42,` +
		`"localPlayer":{"PlayerId":1,"Name":"me","CardID":"HERO_05"},"opponentPlayer":{"PlayerId":2},` +
		`"gameState":{"ActivePlayerId":1},"timestamp":"2024-03-01T20:00:00Z","additionalData":{"cost":2,"secret":true}}`)
	require.NoError(t, err)
	assert.Equal(t, gameevent.CardPlayed, event.Type)
	assert.Equal(t, "EX1_611", event.CardID)
	assert.Equal(t, 42, event.EntityID)
	assert.True(t, event.IsPlayer())
	assert.Equal(t, "HERO_05", event.LocalPlayer.CardID)
	assert.Equal(t, 2, event.OpponentPlayer.PlayerID)
	assert.Equal(t, 1, event.GameState.ActivePlayerID)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), event.Timestamp.UTC())
	cost, ok := event.AdditionalData.Int("cost")
	assert.True(t, ok)
	assert.Equal(t, 2, cost)
	assert.True(t, event.AdditionalData.Bool("secret"))

	_, err = DecodeEvent(`not json`)
	assert.Error(t, err)
	_, err = DecodeEvent(`{"cardId":"X"}`)
	assert.Error(t, err)
}

func TestEventReaderFansOut(t *testing.T) {
	path := writeFile(t, strings.Join([]string{
		`{"type":"GAME_START"}`,
		`garbage`,
		``,
		`{"type":"TURN_START","additionalData":{"turnNumber":1}}`,
		`{"type":"GAME_END"}`,
	}, "\n"))

	first, second := &collectingSink{}, &collectingSink{}
	reader := NewEventReader(path, TailOptions{FromStart: true}, []Sink{first, second}, zaptest.NewLogger(t))
	require.NoError(t, reader.Run(context.Background()))

	decoded, skipped := reader.Counts()
	assert.Equal(t, 3, decoded)
	assert.Equal(t, 1, skipped)
	require.Len(t, first.events, 3)
	assert.Equal(t, gameevent.GameStart, first.events[0].Type)
	assert.Equal(t, gameevent.GameEnd, first.events[2].Type)
	assert.Equal(t, first.events, second.events)
}

func TestTailFollowsAppendedLines(t *testing.T) {
	path := writeFile(t, "old line\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &collectingSink{}
	reader := NewEventReader(path, TailOptions{Follow: true, PollInterval: 5 * time.Millisecond}, []Sink{sink}, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	// give the reader time to seek to the end before appending
	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"GAME_ST`)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = f.WriteString("ART\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return sink.len() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, gameevent.GameStart, sink.events[0].Type)
}

func TestTailMissingFile(t *testing.T) {
	err := Tail(context.Background(), filepath.Join(t.TempDir(), "missing.log"), TailOptions{}, func(string) {})
	assert.Error(t, err)
}

func TestDeckLogReader(t *testing.T) {
	path := writeFile(t, strings.Join([]string{
		"I 20:01:02.1234567 Deck Contents Received:",
		"I 20:01:02.1234567 ### Browsing Deck",
		"I 20:01:02.1234567 AAECAR8GxwPJBLsFmQfZB/4HDI0BqAK1A+UEtAXtBpcI",
		"I 20:05:00.0000000 Finding Game With Deck:",
		"I 20:05:00.0000000 ### Face Hunter",
		"I 20:05:00.0000000 # Deck ID: 1234",
		"I 20:05:00.0000000 AAECAR8CxwPJBAAA",
		"I 20:09:00.0000000 Finished Editing Deck:",
		"I 20:09:00.0000000 ### Edited",
		"I 20:09:00.0000000 AAEBAR8AAAA=",
		"I 20:10:00.0000000 Duel deck",
		"I 20:10:00.0000000 AAECAR8AAAA=",
	}, "\n"))

	holder := &recordingHolder{}
	reader := NewDeckLogReader(path, TailOptions{FromStart: true}, holder, zaptest.NewLogger(t))
	require.NoError(t, reader.Run(context.Background()))

	require.Len(t, holder.calls, 2)
	assert.Equal(t, deckCall{name: "Face Hunter", deckString: "AAECAR8CxwPJBAAA"}, holder.calls[0])
	assert.Equal(t, deckCall{name: "", deckString: "AAECAR8AAAA="}, holder.calls[1])
}
