package gameevent

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType indicates the category of a telemetry event.
type EventType string

const (
	// Match lifecycle
	GameStart     EventType = "GAME_START"
	MatchMetadata EventType = "MATCH_METADATA"
	MulliganDone  EventType = "MULLIGAN_DONE"
	TurnStart     EventType = "TURN_START"
	GameEnd       EventType = "GAME_END"
	SceneChanged  EventType = "SCENE_CHANGED"

	// Zone events
	CardDrawFromDeck    EventType = "CARD_DRAW_FROM_DECK"
	ReceiveCardInHand   EventType = "RECEIVE_CARD_IN_HAND"
	CardBackToDeck      EventType = "CARD_BACK_TO_DECK"
	CreateCardInDeck    EventType = "CREATE_CARD_IN_DECK"
	CardRemovedFromDeck EventType = "CARD_REMOVED_FROM_DECK"
	CardRemovedFromHand EventType = "CARD_REMOVED_FROM_HAND"
	CardPlayed          EventType = "CARD_PLAYED"
	EndOfEchoInHand     EventType = "END_OF_ECHO_IN_HAND"
	DiscardCard         EventType = "DISCARD_CARD"
	RecruitCard         EventType = "RECRUIT_CARD"
	MinionSummoned      EventType = "MINION_SUMMONED"
	BurnedCard          EventType = "BURNED_CARD"
	CardChangedOnBoard  EventType = "CARD_CHANGED_ON_BOARD"
	MinionsDied         EventType = "MINIONS_DIED"

	// Secret events
	SecretPlayed         EventType = "SECRET_PLAYED"
	SecretPlayedFromDeck EventType = "SECRET_PLAYED_FROM_DECK"
	SecretTriggered      EventType = "SECRET_TRIGGERED"

	// Look-ahead events: they describe what is about to happen to the previous event
	SecretWillTrigger EventType = "SECRET_WILL_TRIGGER"
	MinionsWillDie    EventType = "MINIONS_WILL_DIE"

	// Combat events
	AttackingHero   EventType = "ATTACKING_HERO"
	AttackingMinion EventType = "ATTACKING_MINION"

	// Battlegrounds events
	BattlegroundsHeroSelected    EventType = "BATTLEGROUNDS_HERO_SELECTED"
	BattlegroundsRecruitPhase    EventType = "BATTLEGROUNDS_RECRUIT_PHASE"
	BattlegroundsCombatStart     EventType = "BATTLEGROUNDS_COMBAT_START"
	BattlegroundsBattleSimulated EventType = "BATTLEGROUNDS_BATTLE_SIMULATION"
	BattlegroundsBattleResult    EventType = "BATTLEGROUNDS_BATTLE_RESULT"
)

// IsLookahead reports whether the event only qualifies the event queued before it.
func (et EventType) IsLookahead() bool {
	return et == SecretWillTrigger || et == MinionsWillDie
}

// PlayerInfo identifies one side of the match as reported by the game client.
type PlayerInfo struct {
	PlayerID int    `json:"PlayerId"`
	Name     string `json:"Name,omitempty"`
	CardID   string `json:"CardID,omitempty"`
}

// StateInfo carries the slice of live game state attached to an event.
type StateInfo struct {
	ActivePlayerID int `json:"ActivePlayerId"`
}

// GameEvent is one immutable telemetry record.
type GameEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	CardID         string         `json:"cardId,omitempty"`
	ControllerID   int            `json:"controllerId,omitempty"`
	EntityID       int            `json:"entityId,omitempty"`
	LocalPlayer    PlayerInfo     `json:"localPlayer"`
	OpponentPlayer PlayerInfo     `json:"opponentPlayer"`
	GameState      StateInfo      `json:"gameState"`
	AdditionalData AdditionalData `json:"additionalData,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// New creates an event with the common positional fields populated.
func New(eventType EventType, cardID string, controllerID, entityID int) GameEvent {
	return GameEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		CardID:         cardID,
		ControllerID:   controllerID,
		EntityID:       entityID,
		AdditionalData: AdditionalData{},
		Timestamp:      time.Now(),
	}
}

// WithPlayers returns a copy of the event with both player descriptors set.
func (e GameEvent) WithPlayers(local, opponent PlayerInfo) GameEvent {
	e.LocalPlayer = local
	e.OpponentPlayer = opponent
	return e
}

// WithData returns a copy of the event with key set in its additional data.
func (e GameEvent) WithData(key string, value any) GameEvent {
	data := make(AdditionalData, len(e.AdditionalData)+1)
	for k, v := range e.AdditionalData {
		data[k] = v
	}
	data[key] = value
	e.AdditionalData = data
	return e
}

// Parse returns the positional payload shared by card events.
func (e GameEvent) Parse() (cardID string, controllerID int, localPlayer PlayerInfo, entityID int) {
	return e.CardID, e.ControllerID, e.LocalPlayer, e.EntityID
}

// IsPlayer reports whether the event's controller is the local player.
func (e GameEvent) IsPlayer() bool {
	return e.ControllerID != 0 && e.ControllerID == e.LocalPlayer.PlayerID
}

// AdditionalData is the free-form, event-specific payload.
type AdditionalData map[string]any

// Has reports whether key is present with a non-nil value.
func (d AdditionalData) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// String returns the value of key as a string, or "" when absent.
func (d AdditionalData) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int returns the value of key as an int. JSON numbers decode as float64, so
// every numeric representation is accepted.
func (d AdditionalData) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Float returns the value of key as a float64.
func (d AdditionalData) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the value of key as a bool; absent keys are false.
func (d AdditionalData) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Map returns a nested object, or nil.
func (d AdditionalData) Map(key string) AdditionalData {
	switch v := d[key].(type) {
	case AdditionalData:
		return v
	case map[string]any:
		return AdditionalData(v)
	default:
		return nil
	}
}

// Maps returns a nested list of objects; non-object entries are skipped.
func (d AdditionalData) Maps(key string) []AdditionalData {
	var out []AdditionalData
	switch v := d[key].(type) {
	case []AdditionalData:
		return v
	case []map[string]any:
		for _, m := range v {
			out = append(out, AdditionalData(m))
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, AdditionalData(m))
			}
		}
	}
	return out
}
