// Package ingestor keeps the real candle series gap-free and at most a
// minute behind the exchange for every tracked symbol.
package ingestor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"candlesystem/internal/exchange"
	"candlesystem/internal/metrics"
	"candlesystem/internal/model"
)

// Config configures the ingestor's scheduling loop.
type Config struct {
	Symbols        []string
	TickInterval   time.Duration // default 60s
	Workers        int           // bounded pool size, default 4
	BootstrapSince time.Duration // how far back to seed an empty symbol, default 30 days
	RetryStrategy  exchange.RetryStrategy
}

func (c Config) withDefaults() Config {
	if c.TickInterval == 0 {
		c.TickInterval = 60 * time.Second
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.BootstrapSince == 0 {
		c.BootstrapSince = 30 * 24 * time.Hour
	}
	return c
}

// Scheduler runs the periodic ingest loop described for each tracked
// symbol: compute the fetch start, pull windows from the exchange, and
// upsert the result.
type Scheduler struct {
	cfg     Config
	client  *exchange.Client
	store   model.Store
	pub     model.Publisher
	metrics *metrics.Ingestor
}

// New builds a Scheduler.
func New(cfg Config, client *exchange.Client, store model.Store, pub model.Publisher, m *metrics.Ingestor) *Scheduler {
	return &Scheduler{cfg: cfg.withDefaults(), client: client, store: store, pub: pub, metrics: m}
}

// Run blocks, ticking every cfg.TickInterval, until ctx is cancelled.
// Each tick runs to completion — symbols are fanned out to a bounded
// worker pool so one slow symbol never starves the others, but the tick
// as a whole always finishes before the next timer fires or the loop
// waits for it.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "ingestor shutting down")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}()

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for _, symbol := range s.cfg.Symbols {
		symbol := symbol
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.syncSymbol(ctx, symbol)
		}()
	}
	wg.Wait()
}

// syncSymbol fetches and upserts new candles for one symbol. It never
// returns an error to the caller — failures are logged and retried on
// the next tick, per the ingestor's error-handling policy.
func (s *Scheduler) syncSymbol(ctx context.Context, symbol string) {
	if _, err := s.SyncOne(ctx, symbol); err != nil {
		slog.ErrorContext(ctx, "ingestor: determine fetch start failed", "symbol", symbol, "error", err)
	}
}

// SyncOne runs a single synchronous ingest pass for symbol and returns
// the number of new candles written, publishing a sync_complete event
// when it writes at least one. Used both by the periodic tick and by a
// one-shot API-triggered sync.
func (s *Scheduler) SyncOne(ctx context.Context, symbol string) (int, error) {
	start, err := s.fetchStart(ctx, symbol)
	if err != nil {
		return 0, err
	}

	newRecords := 0
	for {
		if ctx.Err() != nil {
			return newRecords, ctx.Err()
		}

		cutoff := currentMinuteFloor(time.Now().UTC())
		if !start.Before(cutoff) {
			break // already at most one minute behind the exchange
		}

		candles, err := exchange.FetchKlinesWithRetry(ctx, s.client, s.cfg.RetryStrategy, symbol, start.UnixMilli(), s.client.MaxCandlesPerRequest())
		if err != nil {
			slog.WarnContext(ctx, "ingestor: fetch failed, giving up for this tick", "symbol", symbol, "error", err)
			if s.metrics != nil {
				s.metrics.FetchErrors.WithLabelValues(symbol).Inc()
			}
			break
		}
		if len(candles) == 0 {
			break
		}

		written, err := s.store.UpsertCandles(ctx, symbol, candles)
		if err != nil {
			slog.ErrorContext(ctx, "ingestor: upsert failed", "symbol", symbol, "error", err)
			break
		}
		newRecords += written

		last := candles[len(candles)-1]
		nextStart := last.OpenTime.Add(time.Minute)
		if !nextStart.After(start) {
			break // no forward progress; avoid spinning
		}
		start = nextStart

		if len(candles) < s.client.MaxCandlesPerRequest() {
			break // caught up to what the exchange currently has
		}
	}

	if newRecords == 0 {
		return 0, nil
	}

	if s.metrics != nil {
		s.metrics.CandlesIngested.WithLabelValues(symbol).Add(float64(newRecords))
	}

	s.publishSyncComplete(ctx, symbol, newRecords)
	return newRecords, nil
}

func (s *Scheduler) fetchStart(ctx context.Context, symbol string) (time.Time, error) {
	last, ok, err := s.store.LastCandle(ctx, symbol)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Now().UTC().Add(-s.cfg.BootstrapSince), nil
	}
	return last.OpenTime.Add(time.Minute), nil
}

func (s *Scheduler) publishSyncComplete(ctx context.Context, symbol string, newRecords int) {
	last, ok, err := s.store.LastCandle(ctx, symbol)
	if err != nil || !ok {
		return
	}
	stats, err := s.store.Stats(ctx, symbol)
	if err != nil {
		slog.WarnContext(ctx, "ingestor: stats lookup for sync_complete failed", "symbol", symbol, "error", err)
		return
	}

	ev := model.SyncCompleteEvent{
		Symbol:       symbol,
		NewRecords:   newRecords,
		Total:        stats.CandleCount,
		LastPrice:    last.Close.String(),
		LastRecordTS: last.OpenTime,
	}
	if err := s.pub.PublishSyncComplete(ctx, ev); err != nil {
		slog.WarnContext(ctx, "ingestor: publish sync_complete failed", "symbol", symbol, "error", err)
	}
}

func currentMinuteFloor(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
