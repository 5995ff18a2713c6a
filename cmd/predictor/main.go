// cmd/predictor runs the continuous per-symbol prediction loop and a
// daily sweep that clears stale model artifacts left behind by symbols
// that stop training before a new UTC day starts.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"candlesystem/config"
	"candlesystem/internal/logger"
	"candlesystem/internal/metrics"
	"candlesystem/internal/predictor"
	"candlesystem/internal/store/mongo"
)

func main() {
	cfg := config.Load()
	logger.Init("predictor", slog.LevelInfo)

	log.Println("[predictor] ╔══════════════════════════════════════════════╗")
	log.Println("[predictor] ║  Minute Prediction Engine                     ║")
	log.Printf("[predictor] ║  symbols: %-36v ║", cfg.Symbols)
	log.Printf("[predictor] ║  tick interval: %-29s ║", cfg.PredictTickInterval)
	log.Printf("[predictor] ║  artifacts: %-34s ║", cfg.ModelArtifactDir)
	log.Println("[predictor] ╚══════════════════════════════════════════════╝")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	store, err := mongo.New(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB})
	if err != nil {
		log.Fatalf("[predictor] storage init failed: %v", err)
	}
	defer store.Close(context.Background())
	for _, symbol := range cfg.Symbols {
		if err := store.EnsureIndexes(ctx, symbol); err != nil {
			log.Fatalf("[predictor] ensure indexes for %s failed: %v", symbol, err)
		}
	}

	if err := os.MkdirAll(cfg.ModelArtifactDir, 0o755); err != nil {
		log.Fatalf("[predictor] artifact dir init failed: %v", err)
	}

	m := metrics.NewPredictor()
	sched := predictor.New(predictor.Config{
		Symbols:      cfg.Symbols,
		TickInterval: cfg.PredictTickInterval,
		ArtifactDir:  cfg.ModelArtifactDir,
	}, store, m)

	artifacts := predictor.NewArtifactStore(cfg.ModelArtifactDir)
	sweep := cron.New(cron.WithLocation(time.UTC))
	_, err = sweep.AddFunc("5 0 * * *", func() {
		today := predictor.DateTag(time.Now().UTC())
		for _, symbol := range cfg.Symbols {
			if err := artifacts.DeleteStaleSets(symbol, today); err != nil {
				slog.Warn("predictor: stale artifact sweep failed", "symbol", symbol, "error", err)
			}
		}
	})
	if err != nil {
		log.Fatalf("[predictor] cron schedule invalid: %v", err)
	}
	sweep.Start()
	defer sweep.Stop()

	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Printf("[predictor] scheduler stopped: %v", err)
		}
	}()

	<-sigCh
	slog.Info("predictor: shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
}
