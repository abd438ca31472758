package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/firestone-hs/decktracker/internal/battlegrounds"
	"github.com/firestone-hs/decktracker/internal/cards"
	"github.com/firestone-hs/decktracker/internal/config"
	"github.com/firestone-hs/decktracker/internal/decktracker"
	"github.com/firestone-hs/decktracker/internal/decktracker/parser"
	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/firestone-hs/decktracker/internal/repository"
	"github.com/firestone-hs/decktracker/internal/tracing"
	"go.uber.org/zap"
)

// tracker groups the long-lived pipeline components.
type tracker struct {
	cards     *cards.DB
	holder    *decktracker.DeckHolder
	bus       *decktracker.Bus
	service   *decktracker.Service
	bgs       *battlegrounds.Store
	inspector *diagnostics.Inspector
}

type trackerOptions struct {
	requireDecklist bool
	onEvent         func(ctx context.Context, event gameevent.GameEvent)
}

// openStore opens the configured repository; a disabled store yields nil.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (repository.Store, error) {
	store, err := repository.Open(ctx, repository.Config{Driver: cfg.Driver, DSN: cfg.DSN, MaxConns: cfg.MaxConns}, logger)
	if errors.Is(err, repository.ErrNotConfigured) {
		logger.Info("storage disabled")
		return nil, nil
	}
	return store, err
}

// loadCards prefers the configured file and falls back to the catalogue
// imported into the store.
func loadCards(ctx context.Context, cfg config.CardsConfig, store repository.Store, logger *zap.Logger) (*cards.DB, error) {
	if cfg.Path != "" {
		return cards.Load(cfg.Path, logger)
	}
	if store != nil {
		list, err := store.LoadCards(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cards from store: %w", err)
		}
		logger.Info("card database loaded from store", zap.Int("cards", len(list)))
		return cards.NewDB(list, logger), nil
	}
	logger.Warn("no card database configured, card details will be missing")
	return cards.NewDB(nil, logger), nil
}

func buildTracker(ctx context.Context, cfg *config.Config, store repository.Store, opts trackerOptions, logger *zap.Logger) (*tracker, error) {
	db, err := loadCards(ctx, cfg.Cards, store, logger)
	if err != nil {
		return nil, err
	}

	var secrets *parser.SecretConfig
	if cfg.Cards.SecretsConfigPath != "" {
		if secrets, err = parser.LoadSecretConfig(cfg.Cards.SecretsConfigPath, logger); err != nil {
			return nil, err
		}
	}
	var special *parser.SpecialCards
	if cfg.Cards.SpecialRulesPath != "" {
		if special, err = parser.LoadSpecialCards(cfg.Cards.SpecialRulesPath, logger); err != nil {
			return nil, err
		}
	}

	var reports diagnostics.Sink = diagnostics.NewLogSink(logger)
	if store != nil {
		reports = diagnostics.MultiSink{reports, diagnostics.NewStoreSink(store, logger)}
	}

	holder := decktracker.NewDeckHolder(db, logger)
	inspector := diagnostics.NewInspector()
	bus := decktracker.NewBus()
	service := decktracker.NewService(decktracker.ServiceConfig{
		Parsers: parser.Catalogue(parser.Deps{
			Cards:    db,
			Decks:    holder,
			Secrets:  secrets,
			Special:  special,
			DeckSize: cfg.Pipeline.DeckSize,
			Logger:   logger,
		}),
		Holder:           holder,
		Bus:              bus,
		Inspector:        inspector,
		Reports:          reports,
		Tracer:           tracing.Tracer(),
		Logger:           logger,
		RequireDecklist:  opts.requireDecklist,
		NotificationMode: decktracker.NotificationMode(cfg.Pipeline.NotificationMode),
		OnEvent:          opts.onEvent,
	})
	bgs := battlegrounds.NewStore(battlegrounds.Parsers(reports, logger), logger)
	inspector.Register("battlegrounds", func() any { return bgs.State() })

	return &tracker{
		cards:     db,
		holder:    holder,
		bus:       bus,
		service:   service,
		bgs:       bgs,
		inspector: inspector,
	}, nil
}

// Enqueue feeds an event to both trackers.
func (t *tracker) Enqueue(event gameevent.GameEvent) {
	t.service.Enqueue(event)
	t.bgs.Enqueue(event)
}
