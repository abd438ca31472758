// Package battlegrounds tracks the battlegrounds side of a match: combat
// simulations, face-offs against each opponent, win streaks and hero health
// per turn.
package battlegrounds

import "strings"

// Battle results reported by the game.
const (
	ResultWon  = "won"
	ResultLost = "lost"
	ResultTied = "tied"
)

// FaceOff is one combat between the local player and an opponent.
type FaceOff struct {
	Turn           int    `json:"turn"`
	PlayerCardID   string `json:"playerCardId,omitempty"`
	OpponentCardID string `json:"opponentCardId,omitempty"`
	Result         string `json:"result"`
	Damage         int    `json:"damage"`
}

// SimulationResult is the predicted outcome of the next combat, in percent.
// A nil percentage means the simulator did not report it.
type SimulationResult struct {
	WonPercent        *float64 `json:"wonPercent,omitempty"`
	TiedPercent       *float64 `json:"tiedPercent,omitempty"`
	LostPercent       *float64 `json:"lostPercent,omitempty"`
	AverageDamageWon  float64  `json:"averageDamageWon"`
	AverageDamageLost float64  `json:"averageDamageLost"`
}

// HpTurn is a hero's health at the start of one turn.
type HpTurn struct {
	Turn  int `json:"turn"`
	Value int `json:"value"`
	Armor int `json:"armor"`
}

// State is one immutable battlegrounds snapshot.
type State struct {
	InGame           bool                `json:"inGame"`
	CurrentTurn      int                 `json:"currentTurn"`
	MainPlayerCardID string              `json:"mainPlayerCardId,omitempty"`
	BattleInfo       map[string]any      `json:"battleInfo,omitempty"`
	BattleResult     *SimulationResult   `json:"battleResult,omitempty"`
	FaceOffs         []FaceOff           `json:"faceOffs"`
	CurrentWinStreak int                 `json:"currentWinStreak"`
	HighestWinStreak int                 `json:"highestWinStreak"`
	HpOverTurn       map[string][]HpTurn `json:"hpOverTurn"`
}

// NewState returns the empty state.
func NewState() *State {
	return &State{HpOverTurn: map[string][]HpTurn{}}
}

// Clone returns a shallow copy with its own health map.
func (s *State) Clone() *State {
	c := *s
	c.HpOverTurn = make(map[string][]HpTurn, len(s.HpOverTurn))
	for hero, turns := range s.HpOverTurn {
		c.HpOverTurn[hero] = turns
	}
	return &c
}

// NormalizeHeroCardID strips the skin suffix of a hero card id.
func NormalizeHeroCardID(cardID string) string {
	if i := strings.Index(cardID, "_SKIN_"); i >= 0 {
		return cardID[:i]
	}
	return cardID
}
