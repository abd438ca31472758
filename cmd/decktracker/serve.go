package main

import (
	"context"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/firestone-hs/decktracker/internal/battlegrounds"
	"github.com/firestone-hs/decktracker/internal/config"
	"github.com/firestone-hs/decktracker/internal/decktracker"
	"github.com/firestone-hs/decktracker/internal/forwarder"
	"github.com/firestone-hs/decktracker/internal/replay"
	"github.com/firestone-hs/decktracker/internal/repository"
	"github.com/firestone-hs/decktracker/internal/telemetry"
	"github.com/firestone-hs/decktracker/internal/tracing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Track the live game and forward state updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// forwarders are the external emitters, switched on and off by
// forwarder.enabled.
type forwarders struct {
	hub    *forwarder.Hub
	stream *forwarder.StreamForwarder
}

func (f forwarders) emitters(enabled bool) []decktracker.Emitter {
	if !enabled {
		return nil
	}
	list := []decktracker.Emitter{f.hub}
	if f.stream != nil {
		list = append(list, f.stream)
	}
	return list
}

func serve(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting decktracker",
		zap.String("version", version),
		zap.String("config", cfg.File()),
	)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{Enabled: cfg.Tracing.Enabled, Endpoint: cfg.Tracing.Endpoint})
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var opts trackerOptions
	opts.requireDecklist = cfg.Pipeline.RequireDecklist
	if cfg.Replay.Enabled {
		opts.onEvent = replay.NewRecorder(cfg.Replay.Directory, logger).OnEvent
	}
	t, err := buildTracker(ctx, cfg, store, opts, logger)
	if err != nil {
		return err
	}

	var recorder *repository.MatchRecorder
	if store != nil {
		recorder = repository.NewMatchRecorder(store, logger)
		t.bus.Subscribe(func(n decktracker.Notification) { recorder.Emit(ctx, n) })
	}
	t.bus.Subscribe(func(n decktracker.Notification) {
		logger.Debug("state updated", zap.String("event", n.Event.Name))
	})

	auth := forwarder.NewTokenChecker(cfg.Forwarder.WebSocket.AccessTokenHash)
	fw := forwarders{hub: forwarder.NewHub(auth, logger)}
	if cfg.Forwarder.GRPC.Address != "" {
		fw.stream = forwarder.NewStreamForwarder(auth, logger)
	}
	var enabled atomic.Bool
	enabled.Store(cfg.Forwarder.Enabled)
	t.service.SetEmitters(fw.emitters(enabled.Load()))
	t.bgs.Subscribe(func(ctx context.Context, state *battlegrounds.State) {
		if enabled.Load() {
			fw.hub.Broadcast(forwarder.MessageBattlegrounds, "battlegrounds", state)
		}
	})
	cfg.Watch(logger, func(next *config.Config) {
		if enabled.Swap(next.Forwarder.Enabled) == next.Forwarder.Enabled {
			return
		}
		logger.Info("forwarder toggled", zap.Bool("enabled", next.Forwarder.Enabled))
		t.service.SetEmitters(fw.emitters(next.Forwarder.Enabled))
	})

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("component stopped", zap.String("component", name), zap.Error(err))
			}
		}()
	}

	run("decktracker", t.service.Run)
	run("battlegrounds", t.bgs.Run)
	run("websocket", func(ctx context.Context) error {
		go fw.hub.Run(ctx)
		return fw.hub.ListenAndServe(ctx, cfg.Forwarder.WebSocket.Address, cfg.Forwarder.WebSocket.Path)
	})
	if fw.stream != nil {
		run("grpc", func(ctx context.Context) error {
			return forwarder.ServeGRPC(ctx, cfg.Forwarder.GRPC.Address, fw.stream, logger)
		})
	}
	if cfg.Diagnostics.InspectAddress != "" {
		run("inspector", func(ctx context.Context) error {
			return t.inspector.Serve(ctx, cfg.Diagnostics.InspectAddress, logger)
		})
	}

	tail := telemetry.TailOptions{Follow: cfg.Telemetry.Follow, PollInterval: cfg.Telemetry.PollInterval}
	if cfg.Telemetry.DecksLog != "" {
		reader := telemetry.NewDeckLogReader(cfg.Telemetry.DecksLog, tail, t.holder, logger)
		run("decks-log", reader.Run)
	}
	if cfg.Telemetry.EventsLog != "" {
		reader := telemetry.NewEventReader(cfg.Telemetry.EventsLog, tail, []telemetry.Sink{t}, logger)
		run("events-log", reader.Run)
	} else {
		logger.Warn("telemetry.events_log not set, no game events will be read")
	}

	logger.Info("decktracker initialized",
		zap.Bool("forwarder_enabled", cfg.Forwarder.Enabled),
		zap.String("websocket_address", cfg.Forwarder.WebSocket.Address),
		zap.String("grpc_address", cfg.Forwarder.GRPC.Address),
		zap.Bool("require_decklist", cfg.Pipeline.RequireDecklist),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully...")
	wg.Wait()
	if recorder != nil {
		recorder.Flush()
	}
	logger.Info("decktracker stopped")
	return nil
}
