package cards

// Card ids with tracker-specific handling.
const (
	Counterspell = "EX1_287"
	FreezingTrap = "EX1_611"
)

var counterspells = map[string]bool{
	Counterspell: true,
}

var librams = map[string]bool{
	"BT_011": true, // Libram of Justice
	"BT_024": true, // Libram of Hope
	"BT_025": true, // Libram of Wisdom
}

var watchPosts = map[string]bool{
	"BAR_074": true,
	"BAR_075": true,
	"BAR_076": true,
}

// IsCounterspell reports whether a secret with this id cancels the card it reacts to.
func IsCounterspell(cardID string) bool { return counterspells[cardID] }

// IsLibram reports whether the card is a libram.
func IsLibram(cardID string) bool { return librams[cardID] }

// IsWatchPost reports whether the card is a watch post.
func IsWatchPost(cardID string) bool { return watchPosts[cardID] }
