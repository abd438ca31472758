package decktracker

import (
	"sort"
	"strings"
	"sync"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/deckstring"
	"github.com/firestone-hs/decktracker/internal/decktracker/parser"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
)

// DeckInfo is the deck the local player queued with.
type DeckInfo struct {
	Name       string `json:"name"`
	DeckString string `json:"deckstring"`
	ScenarioID int    `json:"scenarioId"`
}

// DeckHolder tracks the active decklist. Its readiness is the guard of the
// dispatch loop: events wait in the queue until a deck is known.
type DeckHolder struct {
	mu       sync.RWMutex
	current  DeckInfo
	previous *DeckInfo
	onChange func()
	cards    cards.Lookup
	logger   *zap.Logger
}

// NewDeckHolder creates an empty holder resolving card ids through lookup.
func NewDeckHolder(lookup cards.Lookup, logger *zap.Logger) *DeckHolder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckHolder{cards: lookup, logger: logger}
}

// SetOnChange registers a callback run after the deck changes.
func (h *DeckHolder) SetOnChange(fn func()) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// SetDeck records the active deck. The deckstring is normalized first.
func (h *DeckHolder) SetDeck(name, deckString string, scenarioID int) {
	h.mu.Lock()
	h.current = DeckInfo{
		Name:       name,
		DeckString: NormalizeDeckstring(deckString),
		ScenarioID: scenarioID,
	}
	fn := h.onChange
	h.mu.Unlock()

	h.logger.Info("active deck set",
		zap.String("deck_name", name),
		zap.Int("scenario_id", scenarioID),
	)
	if fn != nil {
		fn()
	}
}

// Ready reports whether a deck is known.
func (h *DeckHolder) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.DeckString != ""
}

// Current returns the raw deck info.
func (h *DeckHolder) Current() DeckInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Previous returns the deck kept from the last game against the AI.
func (h *DeckHolder) Previous() (DeckInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.previous == nil {
		return DeckInfo{}, false
	}
	return *h.previous, true
}

// Reset forgets the active deck. With storePrevious the deck is kept so that
// a rematch on the same scenario can reuse it.
func (h *DeckHolder) Reset(storePrevious bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if storePrevious && h.current.DeckString != "" {
		prev := h.current
		h.previous = &prev
	} else {
		h.previous = nil
	}
	h.current = DeckInfo{}
}

// ObserveScenario restores the previous deck when a match starts on the same
// scenario and no new deck was registered. It reports whether it did.
func (h *DeckHolder) ObserveScenario(scenarioID int) bool {
	h.mu.Lock()
	if h.current.DeckString != "" || h.previous == nil || h.previous.ScenarioID != scenarioID {
		h.mu.Unlock()
		return false
	}
	h.current = *h.previous
	fn := h.onChange
	h.mu.Unlock()

	h.logger.Info("restored previous deck", zap.Int("scenario_id", scenarioID))
	if fn != nil {
		fn()
	}
	return true
}

// CurrentDeck expands the active deckstring into cards sorted by cost.
func (h *DeckHolder) CurrentDeck() parser.Decklist {
	info := h.Current()
	if info.DeckString == "" {
		return parser.Decklist{}
	}
	decoded, err := deckstring.Decode(info.DeckString)
	if err != nil {
		h.logger.Warn("could not decode active deck", zap.String("deck_name", info.Name), zap.Error(err))
		return parser.Decklist{Name: info.Name, DeckString: info.DeckString}
	}

	list := parser.Decklist{Name: info.Name, DeckString: info.DeckString}
	if len(decoded.Heroes) > 0 && h.cards != nil {
		hero := h.cards.GetCardFromDbfID(decoded.Heroes[0])
		list.HeroCardID = hero.ID
		list.PlayerClass = strings.ToLower(hero.PlayerClass)
	}
	for _, pair := range decoded.Cards {
		var ref cards.Card
		if h.cards != nil {
			ref = h.cards.GetCardFromDbfID(pair.DbfID)
		}
		for i := 0; i < pair.Count; i++ {
			list.Cards = append(list.Cards, gamestate.DeckCard{
				CardID:   ref.ID,
				CardName: ref.Name,
				ManaCost: ref.Cost,
				Rarity:   ref.LowerRarity(),
				CardType: ref.Type,
			})
		}
	}
	sort.SliceStable(list.Cards, func(i, j int) bool {
		if list.Cards[i].ManaCost != list.Cards[j].ManaCost {
			return list.Cards[i].ManaCost < list.Cards[j].ManaCost
		}
		return list.Cards[i].CardName < list.Cards[j].CardName
	})
	return list
}

// NormalizeDeckstring re-encodes a deckstring into its canonical form.
// Input that does not decode is returned unchanged.
func NormalizeDeckstring(ds string) string {
	decoded, err := deckstring.Decode(ds)
	if err != nil {
		return ds
	}
	normalized, err := deckstring.Encode(decoded)
	if err != nil {
		return ds
	}
	return normalized
}
