package parser

import (
	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"go.uber.org/zap"
)

// Helper implements the zone operations shared by every parser. These are the
// only functions that build new zone slices; none of them modify their input.
type Helper struct {
	cards  cards.Lookup
	logger *zap.Logger
}

// NewHelper creates a zone helper.
func NewHelper(lookup cards.Lookup, logger *zap.Logger) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Helper{cards: lookup, logger: logger}
}

// FindCardInZone locates a card by entity id, falling back to the first card
// with the same card id whose entity id is not yet known.
func (h *Helper) FindCardInZone(zone []gamestate.DeckCard, cardID string, entityID int) (gamestate.DeckCard, bool) {
	if i := indexByEntity(zone, entityID); i >= 0 {
		return zone[i], true
	}
	if i := indexByUnassignedCardID(zone, cardID); i >= 0 {
		return zone[i], true
	}
	return gamestate.DeckCard{}, false
}

// RemoveSingleCardFromZone removes at most one matching card and returns the
// new zone with the removed record. Matching tries the entity id, then an
// unassigned copy with the same card id. With allowFuzzy set it then accepts
// any copy sharing the card id, and finally an unrevealed filler card.
func (h *Helper) RemoveSingleCardFromZone(zone []gamestate.DeckCard, cardID string, entityID int, allowFuzzy bool) ([]gamestate.DeckCard, gamestate.DeckCard, bool) {
	i := indexByEntity(zone, entityID)
	if i < 0 {
		i = indexByUnassignedCardID(zone, cardID)
	}
	if i < 0 && allowFuzzy {
		i = indexByCardID(zone, cardID)
		if i < 0 {
			i = indexFiller(zone)
		}
	}
	if i < 0 {
		return zone, gamestate.DeckCard{}, false
	}
	out := make([]gamestate.DeckCard, 0, len(zone)-1)
	out = append(out, zone[:i]...)
	out = append(out, zone[i+1:]...)
	return out, zone[i], true
}

// AddSingleCardToZone appends card. A card whose entity id is already in the
// zone replaces the existing entry in place, so a zone never holds two live
// records for one entity. Transformed records are always appended.
func (h *Helper) AddSingleCardToZone(zone []gamestate.DeckCard, card gamestate.DeckCard) []gamestate.DeckCard {
	if i := indexByEntity(zone, card.EntityID); i >= 0 && card.Zone != gamestate.ZoneTransformedIntoOther {
		h.logger.Debug("entity already in zone, replacing record",
			zap.Int("entity_id", card.EntityID),
			zap.String("card_id", card.CardID),
		)
		out := append([]gamestate.DeckCard(nil), zone...)
		out[i] = card
		return out
	}
	out := make([]gamestate.DeckCard, 0, len(zone)+1)
	out = append(out, zone...)
	return append(out, card)
}

// ReplaceCardInZone swaps the record for card.EntityID; it is a no-op when
// the entity is absent.
func (h *Helper) ReplaceCardInZone(zone []gamestate.DeckCard, card gamestate.DeckCard) []gamestate.DeckCard {
	i := indexByEntity(zone, card.EntityID)
	if i < 0 {
		return zone
	}
	out := append([]gamestate.DeckCard(nil), zone...)
	out[i] = card
	return out
}

// RemoveSecretOption flags cardID as impossible for every pending secret.
func (h *Helper) RemoveSecretOption(deck *gamestate.DeckState, cardID string) *gamestate.DeckState {
	secrets := make([]gamestate.BoardSecret, len(deck.Secrets))
	for i, s := range deck.Secrets {
		secrets[i] = s.WithoutOption(cardID)
	}
	out := deck.Clone()
	out.Secrets = secrets
	return out
}

// RemoveSecret removes the pending secret with entityID.
func (h *Helper) RemoveSecret(secrets []gamestate.BoardSecret, entityID int) ([]gamestate.BoardSecret, gamestate.BoardSecret, bool) {
	for i, s := range secrets {
		if s.EntityID == entityID {
			out := make([]gamestate.BoardSecret, 0, len(secrets)-1)
			out = append(out, secrets[:i]...)
			return append(out, secrets[i+1:]...), s, true
		}
	}
	return secrets, gamestate.BoardSecret{}, false
}

// BuildCard creates a record for a card first observed by an event, filled
// from the reference data. An unknown card id yields a record with only the
// ids set.
func (h *Helper) BuildCard(cardID string, entityID int) gamestate.DeckCard {
	ref := h.cards.GetCard(cardID)
	return gamestate.DeckCard{
		EntityID: entityID,
		CardID:   cardID,
		CardName: ref.Name,
		ManaCost: ref.Cost,
		Rarity:   ref.LowerRarity(),
		CardType: ref.Type,
	}
}

// Reveal fills the identity of an existing record from an event, keeping
// whatever the record already knew.
func (h *Helper) Reveal(card gamestate.DeckCard, cardID string, entityID int) gamestate.DeckCard {
	if entityID != 0 {
		card.EntityID = entityID
	}
	if cardID != "" && card.CardID != cardID {
		ref := h.cards.GetCard(cardID)
		card.CardID = cardID
		card.CardName = ref.Name
		card.ManaCost = ref.Cost
		card.Rarity = ref.LowerRarity()
		card.CardType = ref.Type
	}
	return card
}

// RemoveEntityEverywhere takes an entity out of every live zone of the deck
// and returns the first record found. Used when an event moves a card out of
// a zone the event does not name, so no entity ends up in two zones.
func (h *Helper) RemoveEntityEverywhere(deck *gamestate.DeckState, entityID int) (*gamestate.DeckState, gamestate.DeckCard, bool) {
	if entityID == 0 {
		return deck, gamestate.DeckCard{}, false
	}
	out := deck.Clone()
	var found gamestate.DeckCard
	var ok bool
	for _, zone := range []*[]gamestate.DeckCard{&out.Hand, &out.Deck, &out.Board, &out.OtherZone} {
		i := indexByEntity(*zone, entityID)
		if i < 0 {
			continue
		}
		if !ok {
			found, ok = (*zone)[i], true
		}
		next := make([]gamestate.DeckCard, 0, len(*zone)-1)
		next = append(next, (*zone)[:i]...)
		*zone = append(next, (*zone)[i+1:]...)
	}
	if !ok {
		return deck, gamestate.DeckCard{}, false
	}
	return out, found, true
}

// indexByEntity ignores transformed records: they keep the entity id of the
// card that replaced them.
func indexByEntity(zone []gamestate.DeckCard, entityID int) int {
	if entityID == 0 {
		return -1
	}
	for i, c := range zone {
		if c.EntityID == entityID && c.Zone != gamestate.ZoneTransformedIntoOther {
			return i
		}
	}
	return -1
}

func indexByUnassignedCardID(zone []gamestate.DeckCard, cardID string) int {
	if cardID == "" {
		return -1
	}
	for i, c := range zone {
		if c.EntityID == 0 && c.CardID == cardID {
			return i
		}
	}
	return -1
}

func indexByCardID(zone []gamestate.DeckCard, cardID string) int {
	if cardID == "" {
		return -1
	}
	for i, c := range zone {
		if c.CardID == cardID {
			return i
		}
	}
	return -1
}

func indexFiller(zone []gamestate.DeckCard) int {
	for i, c := range zone {
		if c.EntityID == 0 && c.CardID == "" {
			return i
		}
	}
	return -1
}
