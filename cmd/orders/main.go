package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shehuna2/MafitaPay-sub002/internal/app"
	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
	"github.com/Shehuna2/MafitaPay-sub002/internal/engine"
	"github.com/Shehuna2/MafitaPay-sub002/internal/gateway"
	"github.com/Shehuna2/MafitaPay-sub002/internal/infra"
	"github.com/Shehuna2/MafitaPay-sub002/internal/notify"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Pprof server, localhost only.
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	role := domain.Role(cfg.Sync.Role)
	viewKey := cfg.Sync.Role + "-orders"
	client := gateway.NewClient(cfg.API.BaseURL, cfg.API.Token)

	// The push worker is wired to the engine through a late-bound hint so the
	// two can reference each other; hints cannot fire before Start connects.
	var eng *engine.Engine
	var push engine.PushChannel
	if cfg.Sync.MerchantView && cfg.API.WSURL != "" {
		push = gateway.NewPushWorker(cfg.API.WSURL, cfg.API.Token, func() {
			if eng != nil {
				eng.Poke()
			}
		})
	}

	var store engine.Persister
	if bootstrap.Store != nil {
		store = bootstrap.Store
	}
	eng = engine.New(viewKey, role, client, engine.Options{
		Push:         push,
		Store:        store,
		PollInterval: cfg.PollInterval(),
		FetchTimeout: cfg.FetchTimeout(),
	})

	dispatcher := notify.NewDispatcher(role, notify.SlogNotifier{}, cfg.MinSoundInterval())
	eng.Subscribe(dispatcher.OnSnapshot)

	if err := eng.Start(ctx); err != nil {
		slog.Error("Failed to start sync engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer eng.Stop()
	slog.InfoContext(ctx, "Order sync started",
		slog.String("view", viewKey), slog.Duration("interval", cfg.PollInterval()))

	// Periodic diagnostics.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := infra.GlobalMetrics.Snapshot()
				slog.Info("Sync metrics",
					slog.Uint64("fetches", m.FetchesTotal),
					slog.Uint64("fetch_errors", m.FetchErrors),
					slog.Uint64("stale_dropped", m.StaleDropped),
					slog.Uint64("push_events", m.PushEvents),
					slog.Uint64("alerts", m.AlertsDetected),
					slog.Bool("push_connected", m.PushConnected))
			}
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down gracefully...")
}
