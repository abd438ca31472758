package decktracker

import (
	"context"
	"testing"

	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/stretchr/testify/assert"
)

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()
	var all, typed []string

	h1 := bus.Subscribe(func(n Notification) { all = append(all, n.Event.Name) })
	h2 := bus.SubscribeTyped("CARD_PLAYED", func(n Notification) { typed = append(typed, n.Event.Name) })
	assert.Equal(t, -1, bus.Subscribe(nil))

	ctx := context.Background()
	bus.Emit(ctx, Notification{Event: NotificationEvent{Name: "GAME_START"}, State: gamestate.New()})
	bus.Emit(ctx, Notification{Event: NotificationEvent{Name: "CARD_PLAYED"}, State: gamestate.New()})
	assert.Equal(t, []string{"GAME_START", "CARD_PLAYED"}, all)
	assert.Equal(t, []string{"CARD_PLAYED"}, typed)

	bus.Unsubscribe(h1)
	bus.Unsubscribe(h2)
	bus.Emit(ctx, Notification{Event: NotificationEvent{Name: "CARD_PLAYED"}})
	assert.Len(t, all, 2)
	assert.Len(t, typed, 1)
}
