package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"navtrack/internal/api"
	"navtrack/internal/app"
	"navtrack/internal/domain"
	"navtrack/internal/engine"
	"navtrack/internal/infra"
	"navtrack/internal/infra/mockfeed"
	"navtrack/internal/infra/stream"
	"navtrack/internal/infra/yahoo"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Quote and historical sources
	var quotes domain.QuoteSource
	var history domain.HistorySource
	switch cfg.Feed.Source {
	case "mock":
		sim := mockfeed.New(cfg.Feed.SeedPrice, cfg.Feed.Perturbation*10)
		quotes, history = sim, sim
	default:
		client := yahoo.NewClient()
		if cfg.Feed.QuoteURL != "" {
			client = yahoo.NewClientWithURL(cfg.Feed.QuoteURL)
		}
		quotes, history = client, client
	}
	slog.Info("feed source selected", slog.String("source", cfg.Feed.Source))

	// 5. Price series engine
	eng := engine.New(engine.Config{
		Symbol:           cfg.Symbol,
		Retention:        cfg.Series.Retention,
		Tick:             time.Duration(cfg.Series.TickMS) * time.Millisecond,
		CacheTTL:         time.Duration(cfg.Feed.CacheTTLSec) * time.Second,
		FailureThreshold: cfg.Feed.FailureThreshold,
		Perturbation:     cfg.Feed.Perturbation,
		PremiumBandPct:   cfg.Model.PremiumBandPct,
		ReversionRate:    cfg.Model.ReversionRate,
		PremiumNoisePct:  cfg.Model.PremiumNoisePct,
		WalkSpan:         cfg.Model.WalkSpan,
		SeedReference:    cfg.Feed.SeedPrice,
		SeedValue:        cfg.Feed.SeedValue,
	}, quotes, history)

	// 6. Backfill so charts have a window immediately
	if cfg.Series.BackfillCount > 0 {
		if err := eng.SeedHistory(ctx, cfg.Series.BackfillCount); err != nil {
			slog.Warn("backfill failed, starting with empty series", slog.Any("error", err))
		} else {
			slog.Info("series backfilled", slog.Int("samples", eng.Len()))
		}
	}

	// 7. Live push feed (optional)
	var quoteCh <-chan domain.Quote
	if cfg.Stream.Enabled {
		worker := stream.NewWorker(cfg.Stream.WSURL, cfg.Symbol,
			time.Duration(cfg.Stream.ReconnectDelaySec)*time.Second)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("failed to start live feed worker", slog.Any("error", err))
		} else {
			quoteCh = worker.Quotes()
			defer worker.Disconnect()
			slog.Info("live feed worker started", slog.String("url", cfg.Stream.WSURL))
		}
	}

	// 8. Advance loop
	runner := app.NewRunner(eng, bootstrap.Recorder,
		time.Duration(cfg.Series.TickMS)*time.Millisecond, quoteCh)
	go runner.Run(ctx)

	// 9. Read API for dashboard consumers
	server := api.NewServer(cfg.API.ListenAddr, eng)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.Info("navtrack operational",
		slog.String("symbol", cfg.Symbol),
		slog.String("api", cfg.API.ListenAddr))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", slog.Any("error", err))
	}

	snap := infra.GlobalMetrics.Snapshot()
	slog.Info("final metrics",
		slog.Uint64("samples_committed", snap.SamplesCommitted),
		slog.Uint64("quotes_fetched", snap.QuotesFetched),
		slog.Uint64("fetch_errors", snap.FetchErrors))
}
