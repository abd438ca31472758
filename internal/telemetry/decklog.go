package telemetry

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	deckNameRegex   = regexp.MustCompile(`^I \d*:\d*:\d*\.\d* ### (.*)$`)
	deckstringRegex = regexp.MustCompile(`^I \d*:\d*:\d*\.\d* ([a-zA-Z0-9/+=]+)$`)
)

// DeckSetter receives decks selected in the client.
type DeckSetter interface {
	SetDeck(name, deckString string, scenarioID int)
}

type deckBlock int

const (
	blockNone deckBlock = iota
	blockSelected
	blockOther
)

// DeckLogReader follows Decks.log and reports the deck the player queued
// with. Deck listings printed while browsing or editing decks are ignored.
type DeckLogReader struct {
	path   string
	opts   TailOptions
	holder DeckSetter
	logger *zap.Logger

	block       deckBlock
	pendingName string
}

// NewDeckLogReader creates a reader for path.
func NewDeckLogReader(path string, opts TailOptions, holder DeckSetter, logger *zap.Logger) *DeckLogReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckLogReader{path: path, opts: opts, holder: holder, logger: logger}
}

// Run reads until end of file, or until ctx is done when following.
func (r *DeckLogReader) Run(ctx context.Context) error {
	r.logger.Info("reading deck log", zap.String("path", r.path), zap.Bool("follow", r.opts.Follow))
	return Tail(ctx, r.path, r.opts, r.HandleLine)
}

// HandleLine processes one Decks.log line.
func (r *DeckLogReader) HandleLine(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return
	case strings.Contains(line, "Deck Contents Received"), strings.Contains(line, "Finished Editing Deck"):
		r.block = blockOther
		r.pendingName = ""
		return
	case strings.Contains(line, "Finding Game With Deck"), strings.Contains(line, "Duel deck"):
		r.block = blockSelected
		r.pendingName = ""
		return
	}
	if r.block == blockOther {
		return
	}

	if match := deckNameRegex.FindStringSubmatch(line); match != nil {
		r.pendingName = match[1]
		return
	}
	if match := deckstringRegex.FindStringSubmatch(line); match != nil {
		r.logger.Info("deck selected", zap.String("deck_name", r.pendingName))
		r.holder.SetDeck(r.pendingName, match[1], 0)
		r.pendingName = ""
		r.block = blockNone
	}
}
