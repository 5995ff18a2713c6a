// cmd/ingestor keeps every tracked symbol's real candle series gap-free
// and at most a minute behind the exchange, publishing a sync-complete
// event on the shared bus after each tick that wrote new candles.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlesystem/config"
	"candlesystem/internal/eventbus"
	"candlesystem/internal/exchange"
	"candlesystem/internal/ingestor"
	"candlesystem/internal/logger"
	"candlesystem/internal/metrics"
	"candlesystem/internal/model"
	"candlesystem/internal/store/mongo"
)

func main() {
	cfg := config.Load()
	logger.Init("ingestor", slog.LevelInfo)

	log.Println("[ingestor] ╔══════════════════════════════════════════════╗")
	log.Println("[ingestor] ║  Candle Ingestor                              ║")
	log.Printf("[ingestor] ║  symbols: %-36v ║", cfg.Symbols)
	log.Printf("[ingestor] ║  tick interval: %-29s ║", cfg.IngestTickInterval)
	log.Printf("[ingestor] ║  storage: %-36s ║", cfg.MongoDB)
	log.Println("[ingestor] ╚══════════════════════════════════════════════╝")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	store, err := mongo.New(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB})
	if err != nil {
		log.Fatalf("[ingestor] storage init failed: %v", err)
	}
	defer store.Close(context.Background())
	for _, symbol := range cfg.Symbols {
		if err := store.EnsureIndexes(ctx, symbol); err != nil {
			log.Fatalf("[ingestor] ensure indexes for %s failed: %v", symbol, err)
		}
	}

	var pub model.Publisher
	if cfg.LocalBus {
		pub = eventbus.NewLocalBus()
	} else {
		bus, err := eventbus.NewRedisBus(eventbus.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Fatalf("[ingestor] event bus init failed: %v", err)
		}
		defer bus.Close()
		pub = bus
	}

	client := exchange.New(exchange.Config{BaseURL: cfg.ExchangeBaseURL})
	m := metrics.NewIngestor()

	sched := ingestor.New(ingestor.Config{
		Symbols:        cfg.Symbols,
		TickInterval:   cfg.IngestTickInterval,
		Workers:        cfg.IngestWorkers,
		BootstrapSince: cfg.BootstrapSince,
		RetryStrategy: exchange.RetryStrategy{
			Attempts:            cfg.RetryAttempts,
			FirstSleepTime:      cfg.RetryFirstSleep,
			SleepTimeMultiplier: cfg.RetrySleepMultiplier,
		},
	}, client, store, pub, m)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	go sched.Run(ctx)

	<-sigCh
	slog.Info("ingestor: shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
}
