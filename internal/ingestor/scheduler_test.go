package ingestor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"candlesystem/internal/eventbus"
	"candlesystem/internal/exchange"
	"candlesystem/internal/store/memstore"
)

func kline(openMs int64, price string) [12]any {
	return [12]any{openMs, price, price, price, price, "1.0", 0, "0", 0, "0", "0", "0"}
}

func TestScheduler_TickIsIdempotentWithNoNewData(t *testing.T) {
	var served bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if served {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		served = true
		json.NewEncoder(w).Encode([]any{kline(0, "100"), kline(60000, "101")})
	}))
	defer srv.Close()

	store := memstore.New()
	bus := eventbus.NewLocalBus()
	client := exchange.New(exchange.Config{BaseURL: srv.URL, Timeout: time.Second})
	sched := New(Config{
		Symbols:      []string{"BTCUSDT"},
		TickInterval: time.Hour,
		Workers:      2,
		RetryStrategy: exchange.RetryStrategy{
			Attempts: 1, FirstSleepTime: time.Millisecond, SleepTimeMultiplier: 1,
		},
	}, client, store, bus, nil)

	ctx := context.Background()
	sched.tick(ctx)
	last1, ok, err := store.LastCandle(ctx, "BTCUSDT")
	if err != nil || !ok {
		t.Fatalf("expected a candle after first tick, ok=%v err=%v", ok, err)
	}

	sched.tick(ctx)
	last2, ok, err := store.LastCandle(ctx, "BTCUSDT")
	if err != nil || !ok {
		t.Fatalf("expected a candle after second tick, ok=%v err=%v", ok, err)
	}

	if !last1.OpenTime.Equal(last2.OpenTime) {
		t.Errorf("second tick should not have advanced last candle: %v -> %v", last1.OpenTime, last2.OpenTime)
	}
}

func TestScheduler_PublishesSyncCompleteOnNewData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{kline(0, "100")})
	}))
	defer srv.Close()

	store := memstore.New()
	bus := eventbus.NewLocalBus()
	client := exchange.New(exchange.Config{BaseURL: srv.URL, Timeout: time.Second})
	sched := New(Config{
		Symbols:      []string{"ETHUSDT"},
		TickInterval: time.Hour,
		Workers:      1,
	}, client, store, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sched.tick(ctx)

	select {
	case ev := <-ch:
		if ev.Symbol != "ETHUSDT" || ev.NewRecords != 1 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sync_complete")
	}
}
