package gamestate

// Zone tags carried by DeckCard.Zone. Cards in hand or deck carry no tag.
const (
	ZoneNone                 = ""
	ZonePlay                 = "PLAY"
	ZoneSecret               = "SECRET"
	ZoneGraveyard            = "GRAVEYARD"
	ZoneDiscard              = "DISCARD"
	ZoneBurned               = "BURNED"
	ZoneSetAside             = "SETASIDE"
	ZoneTransformedIntoOther = "TRANSFORMED_INTO_OTHER"
	ZoneEndOfEcho            = "END_OF_ECHO"
)

// DeckCard is one physical card instance. EntityID 0 and CardID "" mean the
// value has not been revealed yet. PlayTiming 0 means the card never entered play.
type DeckCard struct {
	EntityID      int    `json:"entityId,omitempty"`
	CardID        string `json:"cardId,omitempty"`
	CardName      string `json:"cardName,omitempty"`
	ManaCost      int    `json:"manaCost"`
	Rarity        string `json:"rarity,omitempty"`
	CardType      string `json:"cardType,omitempty"`
	Zone          string `json:"zone,omitempty"`
	CreatorCardID string `json:"creatorCardId,omitempty"`
	TemporaryCard bool   `json:"temporaryCard,omitempty"`
	PlayTiming    int    `json:"playTiming,omitempty"`
}

// InZone returns a copy of the card tagged with zone.
func (c DeckCard) InZone(zone string) DeckCard {
	c.Zone = zone
	return c
}

// ShortCard records a play for the match-wide history.
type ShortCard struct {
	EntityID int    `json:"entityId,omitempty"`
	CardID   string `json:"cardId,omitempty"`
	Side     string `json:"side"`
}

// Sides used by ShortCard.
const (
	SidePlayer   = "player"
	SideOpponent = "opponent"
)

// SecretOption is one card a pending secret could turn out to be.
type SecretOption struct {
	CardID        string `json:"cardId"`
	IsValidOption bool   `json:"isValidOption"`
}

// BoardSecret is a secret in play whose identity may still be hidden.
type BoardSecret struct {
	EntityID           int            `json:"entityId"`
	CardID             string         `json:"cardId,omitempty"`
	AllPossibleOptions []SecretOption `json:"allPossibleOptions"`
}

// WithoutOption returns a copy of the secret with cardID flagged invalid.
func (s BoardSecret) WithoutOption(cardID string) BoardSecret {
	options := make([]SecretOption, len(s.AllPossibleOptions))
	for i, opt := range s.AllPossibleOptions {
		if opt.CardID == cardID {
			opt.IsValidOption = false
		}
		options[i] = opt
	}
	s.AllPossibleOptions = options
	return s
}

// DynamicZone is a derived grouping of cards recomputed after every update.
type DynamicZone struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Cards []DeckCard `json:"cards"`
}
