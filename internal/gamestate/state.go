package gamestate

import (
	"fmt"
	"sort"
)

// Game types reported in match metadata.
const (
	GameTypeUnknown               = 0
	GameTypeVsAI                  = 1
	GameTypeVsFriend              = 2
	GameTypeTutorial              = 4
	GameTypeArena                 = 5
	GameTypeRanked                = 7
	GameTypeCasual                = 8
	GameTypeTavernBrawl           = 16
	GameTypeTBOnePlayerVsAI       = 17
	GameTypeTBTwoPlayerCoop       = 18
	GameTypeFSGBrawlVsFriend      = 19
	GameTypeFSGBrawl              = 20
	GameTypeFSGBrawlOnePlayerVsAI = 21
	GameTypeFSGBrawlTwoPlayerCoop = 22
	GameTypeBattlegrounds         = 23
	GameTypeBattlegroundsFriendly = 24
	GameTypeDuelsPaid             = 28
	GameTypeDuels                 = 29
)

// Format types reported in match metadata.
const (
	FormatUnknown  = 0
	FormatWild     = 1
	FormatStandard = 2
	FormatClassic  = 3
)

// FormatName returns the lowercase name of a format type.
func FormatName(format int) string {
	switch format {
	case FormatWild:
		return "wild"
	case FormatStandard:
		return "standard"
	case FormatClassic:
		return "classic"
	default:
		return "unknown"
	}
}

// Metadata describes the match being played.
type Metadata struct {
	GameType   int `json:"gameType"`
	FormatType int `json:"formatType"`
	ScenarioID int `json:"scenarioId"`
}

// IsBattlegrounds reports whether the match is a battlegrounds lobby.
func (m Metadata) IsBattlegrounds() bool {
	return m.GameType == GameTypeBattlegrounds || m.GameType == GameTypeBattlegroundsFriendly
}

// DeckState holds one player's zones and counters. Values are never mutated
// once published; every update builds a new DeckState and fresh slices for
// the zones that changed.
type DeckState struct {
	Name        string     `json:"name,omitempty"`
	DeckString  string     `json:"deckstring,omitempty"`
	HeroCardID  string     `json:"heroCardId,omitempty"`
	PlayerClass string     `json:"playerClass,omitempty"`
	DeckList    []DeckCard `json:"deckList"`

	Deck          []DeckCard    `json:"deck"`
	Hand          []DeckCard    `json:"hand"`
	Board         []DeckCard    `json:"board"`
	OtherZone     []DeckCard    `json:"otherZone"`
	GlobalEffects []DeckCard    `json:"globalEffects"`
	Secrets       []BoardSecret `json:"secrets"`
	DynamicZones  []DynamicZone `json:"dynamicZones,omitempty"`

	CardsPlayedThisTurn       []DeckCard  `json:"cardsPlayedThisTurn"`
	SpellsPlayedThisMatch     []DeckCard  `json:"spellsPlayedThisMatch"`
	CardsPlayedThisMatch      []ShortCard `json:"cardsPlayedThisMatch"`
	ElementalsPlayedThisTurn  int         `json:"elementalsPlayedThisTurn"`
	LibramsPlayedThisMatch    int         `json:"libramsPlayedThisMatch"`
	WatchpostsPlayedThisMatch int         `json:"watchpostsPlayedThisMatch"`

	IsFirstPlayer bool `json:"isFirstPlayer"`
}

// NewDeckState creates a deck with the given registered list. The list also
// seeds the library zone.
func NewDeckState(deckList []DeckCard) *DeckState {
	return &DeckState{
		DeckList: deckList,
		Deck:     append([]DeckCard(nil), deckList...),
	}
}

// Clone returns a shallow copy; slices are shared until replaced.
func (d *DeckState) Clone() *DeckState {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Entities returns the entity ids visible in the tracked zones, keyed by id,
// with the zones each one was found in.
func (d *DeckState) Entities() map[int][]string {
	out := make(map[int][]string)
	add := func(zone string, cards []DeckCard) {
		for _, c := range cards {
			if c.EntityID != 0 {
				out[c.EntityID] = append(out[c.EntityID], zone)
			}
		}
	}
	add("deck", d.Deck)
	add("hand", d.Hand)
	add("board", d.Board)
	for _, c := range d.OtherZone {
		// transformed records keep the id of the card that replaced them
		if c.EntityID != 0 && c.Zone != ZoneTransformedIntoOther {
			out[c.EntityID] = append(out[c.EntityID], "otherZone")
		}
	}
	for _, s := range d.Secrets {
		if s.EntityID != 0 {
			out[s.EntityID] = append(out[s.EntityID], "secrets")
		}
	}
	return out
}

// GameState is the root snapshot. A nil deck means the match has not started
// (or has been reset) and every card parser treats it as a no-op.
type GameState struct {
	PlayerDeck   *DeckState `json:"playerDeck,omitempty"`
	OpponentDeck *DeckState `json:"opponentDeck,omitempty"`
	Metadata     Metadata   `json:"metadata"`

	MulliganOver         bool        `json:"mulliganOver"`
	CurrentTurn          int         `json:"currentTurn"`
	GameStarted          bool        `json:"gameStarted"`
	CardsPlayedThisMatch []ShortCard `json:"cardsPlayedThisMatch"`

	// PlayTimingCounter is the last play timing handed out this match.
	PlayTimingCounter int `json:"playTimingCounter"`
}

// New returns the empty state used before a match and after a reset.
func New() *GameState {
	return &GameState{}
}

// Clone returns a shallow copy.
func (s *GameState) Clone() *GameState {
	c := *s
	return &c
}

// Deck returns the player's or the opponent's deck.
func (s *GameState) Deck(isPlayer bool) *DeckState {
	if s == nil {
		return nil
	}
	if isPlayer {
		return s.PlayerDeck
	}
	return s.OpponentDeck
}

// WithDeck returns a copy of the state with one side's deck replaced.
func (s *GameState) WithDeck(isPlayer bool, deck *DeckState) *GameState {
	c := s.Clone()
	if isPlayer {
		c.PlayerDeck = deck
	} else {
		c.OpponentDeck = deck
	}
	return c
}

// NextPlayTiming returns the timing for the next card entering play and the
// state that has consumed it.
func (s *GameState) NextPlayTiming() (int, *GameState) {
	c := s.Clone()
	c.PlayTimingCounter++
	return c.PlayTimingCounter, c
}

// ValidateZones checks that no entity sits in two zones of the same deck.
func (s *GameState) ValidateZones() error {
	for _, side := range []struct {
		name string
		deck *DeckState
	}{{SidePlayer, s.PlayerDeck}, {SideOpponent, s.OpponentDeck}} {
		if side.deck == nil {
			continue
		}
		entities := side.deck.Entities()
		ids := make([]int, 0, len(entities))
		for id, zones := range entities {
			if len(zones) > 1 {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			sort.Ints(ids)
			return fmt.Errorf("%s deck: entity %d found in zones %v", side.name, ids[0], entities[ids[0]])
		}
	}
	return nil
}
