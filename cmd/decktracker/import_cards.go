package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCardsCmd = &cobra.Command{
	Use:   "import-cards [cards.json]",
	Short: "Import the reference card catalogue into the configured store",
	Long: `Replaces the card catalogue held by the store with the cards of a JSON file.
serve falls back to this catalogue when cards.path is not set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := openStore(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("storage.driver is none, nothing to import into")
		}
		defer store.Close()

		list, err := cards.ReadFile(args[0])
		if err != nil {
			return err
		}

		bar := progressbar.Default(int64(len(list)), "Checking cards")
		valid := make([]cards.Card, 0, len(list))
		for _, c := range list {
			if c.ID != "" && c.Name != "" {
				valid = append(valid, c)
			}
			_ = bar.Add(1)
		}
		imported, err := store.ImportCards(ctx, valid)
		if err != nil {
			return err
		}
		logger.Info("card import finished",
			zap.String("file", args[0]),
			zap.Int("read", len(list)),
			zap.Int("imported", imported),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "\nImported %d of %d cards\n", imported, len(list))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCardsCmd)
}
