package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/firestone-hs/decktracker/internal/battlegrounds"
	"github.com/firestone-hs/decktracker/internal/decktracker"
	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/firestone-hs/decktracker/internal/replay"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file...]",
	Short: "Re-run recorded matches through a fresh tracker",
	Long: `Loads replay files written while serving with replay.enabled and feeds every
event through a new tracker, then prints what the tracker ended up with.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		deckName, _ := cmd.Flags().GetString("deck-name")
		deckString, _ := cmd.Flags().GetString("deckstring")
		asJSON, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		for _, file := range args {
			r, err := replay.LoadFile(file)
			if err != nil {
				return err
			}
			// offline the deck is only known when given on the command line
			t, err := buildTracker(ctx, cfg, nil, trackerOptions{requireDecklist: deckString != ""}, logger)
			if err != nil {
				return err
			}
			if deckString != "" {
				t.holder.SetDeck(deckName, deckString, 0)
			}

			var last *gamestate.GameState
			t.bus.Subscribe(func(n decktracker.Notification) {
				if n.State != nil && n.State.GameStarted {
					last = n.State
				}
			})

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.Default(int64(r.Size()), fmt.Sprintf("Replaying %s", r.MatchID))
			}
			for event, ok := r.Next(); ok; event, ok = r.Next() {
				t.Enqueue(event)
				t.service.Drain(ctx)
				t.bgs.Drain(ctx)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			logger.Info("replay finished",
				zap.String("match_id", r.MatchID),
				zap.Int("events", r.Size()),
				zap.Int("unprocessed", t.service.QueueLen()),
			)
			if last == nil {
				last = t.service.State()
			}
			if err := printSummary(cmd.OutOrStdout(), r, last, t.bgs.State(), asJSON); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("deck-name", "", "Name of the deck the match was played with")
	replayCmd.Flags().String("deckstring", "", "Deckstring of the deck the match was played with")
	replayCmd.Flags().Bool("json", false, "Print the final state as JSON")
	replayCmd.Flags().BoolP("quiet", "q", false, "Do not show progress")
}

type replaySummary struct {
	MatchID       string               `json:"matchId"`
	Events        int                  `json:"events"`
	State         *gamestate.GameState `json:"state"`
	Battlegrounds *battlegrounds.State `json:"battlegrounds,omitempty"`
}

func printSummary(out io.Writer, r *replay.Replay, state *gamestate.GameState, bgs *battlegrounds.State, asJSON bool) error {
	if asJSON {
		summary := replaySummary{MatchID: r.MatchID, Events: r.Size(), State: state}
		if len(bgs.FaceOffs) > 0 || bgs.MainPlayerCardID != "" {
			summary.Battlegrounds = bgs
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "\nMatch %s: %d events, %d turns, %s\n", r.MatchID, r.Size(), state.CurrentTurn,
		gamestate.FormatName(state.Metadata.FormatType))
	for _, side := range []struct {
		label string
		deck  *gamestate.DeckState
	}{{"Player", state.PlayerDeck}, {"Opponent", state.OpponentDeck}} {
		if side.deck == nil {
			continue
		}
		fmt.Fprintf(out, "  %-8s deck=%d hand=%d board=%d other=%d secrets=%d played=%d\n", side.label,
			len(side.deck.Deck), len(side.deck.Hand), len(side.deck.Board), len(side.deck.OtherZone),
			len(side.deck.Secrets), len(side.deck.CardsPlayedThisMatch))
	}
	if len(bgs.FaceOffs) > 0 {
		fmt.Fprintf(out, "  Battlegrounds: %d face-offs, highest win streak %d\n", len(bgs.FaceOffs), bgs.HighestWinStreak)
	}
	return nil
}
