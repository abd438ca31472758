package deckstring

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidDeckstring is returned for input that is not a valid deckstring.
var ErrInvalidDeckstring = errors.New("invalid deckstring")

const version = 1

// CardCount is a [dbfId, count] pair.
type CardCount struct {
	DbfID int `json:"dbfId"`
	Count int `json:"count"`
}

// Deck is the decoded content of a deckstring.
type Deck struct {
	Format int         `json:"format"`
	Heroes []int       `json:"heroes"`
	Cards  []CardCount `json:"cards"`
}

// Size returns the number of cards in the deck, copies included.
func (d Deck) Size() int {
	total := 0
	for _, c := range d.Cards {
		total += c.Count
	}
	return total
}

// Decode parses a base64 deckstring.
func Decode(deckstring string) (Deck, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(deckstring))
	if err != nil {
		return Deck{}, fmt.Errorf("%w: %v", ErrInvalidDeckstring, err)
	}
	r := bytes.NewReader(raw)
	read := func() (int, error) {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return 0, fmt.Errorf("%w: truncated input", ErrInvalidDeckstring)
		}
		return int(v), nil
	}

	reserved, err := r.ReadByte()
	if err != nil || reserved != 0 {
		return Deck{}, fmt.Errorf("%w: missing reserved byte", ErrInvalidDeckstring)
	}
	v, err := read()
	if err != nil {
		return Deck{}, err
	}
	if v != version {
		return Deck{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidDeckstring, v)
	}

	var deck Deck
	if deck.Format, err = read(); err != nil {
		return Deck{}, err
	}
	numHeroes, err := read()
	if err != nil {
		return Deck{}, err
	}
	for i := 0; i < numHeroes; i++ {
		hero, err := read()
		if err != nil {
			return Deck{}, err
		}
		deck.Heroes = append(deck.Heroes, hero)
	}

	for copies := 1; copies <= 3; copies++ {
		n, err := read()
		if err != nil {
			return Deck{}, err
		}
		for i := 0; i < n; i++ {
			dbfID, err := read()
			if err != nil {
				return Deck{}, err
			}
			count := copies
			if copies == 3 {
				if count, err = read(); err != nil {
					return Deck{}, err
				}
			}
			deck.Cards = append(deck.Cards, CardCount{DbfID: dbfID, Count: count})
		}
	}
	return deck, nil
}

// Encode serialises a deck. Cards are grouped by copy count and sorted by
// dbf id inside each group, so equal decks always encode the same way.
func Encode(deck Deck) (string, error) {
	if len(deck.Heroes) == 0 {
		return "", fmt.Errorf("%w: deck has no hero", ErrInvalidDeckstring)
	}
	var buf bytes.Buffer
	write := func(v int) {
		var tmp [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
	}

	buf.WriteByte(0)
	write(version)
	write(deck.Format)

	heroes := append([]int(nil), deck.Heroes...)
	sort.Ints(heroes)
	write(len(heroes))
	for _, h := range heroes {
		write(h)
	}

	var singles, doubles, many []CardCount
	for _, c := range deck.Cards {
		switch {
		case c.Count <= 0:
			continue
		case c.Count == 1:
			singles = append(singles, c)
		case c.Count == 2:
			doubles = append(doubles, c)
		default:
			many = append(many, c)
		}
	}
	for _, group := range [][]CardCount{singles, doubles, many} {
		sort.Slice(group, func(i, j int) bool { return group[i].DbfID < group[j].DbfID })
		write(len(group))
		for _, c := range group {
			write(c.DbfID)
			if c.Count > 2 {
				write(c.Count)
			}
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
