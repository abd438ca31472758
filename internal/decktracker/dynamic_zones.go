package decktracker

import "github.com/firestone-hs/decktracker/internal/gamestate"

// Dynamic zone ids.
const (
	ZoneRemaining     = "remaining-in-deck"
	ZoneCreatedInDeck = "created-in-deck"
	ZoneUnknownInDeck = "unknown-in-deck"
)

// EnrichDynamicZones recomputes the derived zones of both decks. The result
// depends only on the observed zones, so enriching an enriched state changes
// nothing.
func EnrichDynamicZones(state *gamestate.GameState) *gamestate.GameState {
	if state == nil || (state.PlayerDeck == nil && state.OpponentDeck == nil) {
		return state
	}
	next := state.Clone()
	if state.PlayerDeck != nil {
		next.PlayerDeck = enrichDeck(state.PlayerDeck)
	}
	if state.OpponentDeck != nil {
		next.OpponentDeck = enrichDeck(state.OpponentDeck)
	}
	return next
}

func enrichDeck(deck *gamestate.DeckState) *gamestate.DeckState {
	out := deck.Clone()
	out.DynamicZones = dynamicZones(deck)
	return out
}

func dynamicZones(deck *gamestate.DeckState) []gamestate.DynamicZone {
	var zones []gamestate.DynamicZone
	if remaining := remainingCards(deck); len(remaining) > 0 {
		zones = append(zones, gamestate.DynamicZone{ID: ZoneRemaining, Name: "Remaining cards", Cards: remaining})
	}

	var created, unknown []gamestate.DeckCard
	for _, c := range deck.Deck {
		switch {
		case c.CreatorCardID != "":
			created = append(created, c)
		case c.CardID == "":
			unknown = append(unknown, c)
		}
	}
	if len(created) > 0 {
		zones = append(zones, gamestate.DynamicZone{ID: ZoneCreatedInDeck, Name: "Created in deck", Cards: created})
	}
	if len(unknown) > 0 {
		zones = append(zones, gamestate.DynamicZone{ID: ZoneUnknownInDeck, Name: "Unknown cards", Cards: unknown})
	}
	return zones
}

// remainingCards reconciles the registered list with every copy seen outside
// the library. Generated cards never count against the list. A transformed
// entity counts once, under the card id it had before its first transform.
func remainingCards(deck *gamestate.DeckState) []gamestate.DeckCard {
	if len(deck.DeckList) == 0 {
		return nil
	}
	// the first transformed record of an entity holds its original card
	original := make(map[int]gamestate.DeckCard)
	for _, c := range deck.OtherZone {
		if c.Zone != gamestate.ZoneTransformedIntoOther || c.EntityID == 0 {
			continue
		}
		if _, ok := original[c.EntityID]; !ok {
			original[c.EntityID] = c
		}
	}

	seen := make(map[string]int)
	fromList := func(c gamestate.DeckCard) bool {
		return c.CardID != "" && c.CreatorCardID == "" && !c.TemporaryCard
	}
	for _, c := range original {
		if fromList(c) {
			seen[c.CardID]++
		}
	}
	count := func(cards []gamestate.DeckCard) {
		for _, c := range cards {
			if c.Zone == gamestate.ZoneTransformedIntoOther || !fromList(c) {
				continue
			}
			if _, transformed := original[c.EntityID]; transformed && c.EntityID != 0 {
				continue
			}
			seen[c.CardID]++
		}
	}
	count(deck.Hand)
	count(deck.Board)
	count(deck.OtherZone)
	for _, s := range deck.Secrets {
		if s.CardID != "" {
			seen[s.CardID]++
		}
	}

	var out []gamestate.DeckCard
	for _, c := range deck.DeckList {
		if seen[c.CardID] > 0 {
			seen[c.CardID]--
			continue
		}
		out = append(out, c)
	}
	return out
}
