// cmd/apiserver exposes the read-only HTTP surface, the one-shot sync
// trigger, and the WebSocket broker that fans sync-complete events out
// to subscribed connections.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"candlesystem/config"
	"candlesystem/internal/api"
	"candlesystem/internal/eventbus"
	"candlesystem/internal/exchange"
	"candlesystem/internal/gateway"
	"candlesystem/internal/ingestor"
	"candlesystem/internal/logger"
	"candlesystem/internal/metrics"
	"candlesystem/internal/model"
	"candlesystem/internal/store/mongo"
)

func main() {
	cfg := config.Load()
	logger.Init("apiserver", slog.LevelInfo)

	log.Println("[apiserver] ╔══════════════════════════════════════════════╗")
	log.Println("[apiserver] ║  API & WebSocket Service                      ║")
	log.Printf("[apiserver] ║  symbols: %-36v ║", cfg.Symbols)
	log.Printf("[apiserver] ║  http addr: %-34s ║", cfg.HTTPAddr)
	log.Println("[apiserver] ╚══════════════════════════════════════════════╝")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	store, err := mongo.New(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB})
	if err != nil {
		log.Fatalf("[apiserver] storage init failed: %v", err)
	}
	defer store.Close(context.Background())

	var sub model.Subscriber
	var pub model.Publisher
	if cfg.LocalBus {
		bus := eventbus.NewLocalBus()
		sub, pub = bus, bus
	} else {
		bus, err := eventbus.NewRedisBus(eventbus.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Fatalf("[apiserver] event bus init failed: %v", err)
		}
		defer bus.Close()
		sub, pub = bus, bus
	}

	gatewayMetrics := metrics.NewGateway()
	hub := gateway.NewHub(gatewayMetrics)
	go func() {
		if err := hub.Run(ctx, sub); err != nil {
			log.Printf("[apiserver] hub stopped: %v", err)
		}
	}()

	client := exchange.New(exchange.Config{BaseURL: cfg.ExchangeBaseURL})
	syncer := ingestor.New(ingestor.Config{
		Symbols:        cfg.Symbols,
		BootstrapSince: cfg.BootstrapSince,
		RetryStrategy: exchange.RetryStrategy{
			Attempts:            cfg.RetryAttempts,
			FirstSleepTime:      cfg.RetryFirstSleep,
			SleepTimeMultiplier: cfg.RetrySleepMultiplier,
		},
	}, client, store, pub, nil)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Deps{
		Store:   store,
		Symbols: cfg.Symbols,
		Syncer:  syncer,
		Hub:     hub,
		Gateway: gatewayMetrics,
	})
	mux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("[apiserver] listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[apiserver] http server error: %v", err)
		}
	}()

	<-sigCh
	slog.Info("apiserver: shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
}
