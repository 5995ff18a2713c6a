package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func klineJSON(openMs int64) [12]any {
	return [12]any{openMs, "100.0", "110.0", "90.0", "105.0", "12.5", 0, "0", 0, "0", "0", "0"}
}

func TestFetchKlinesWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]any{klineJSON(0)})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	strategy := RetryStrategy{Attempts: 5, FirstSleepTime: time.Millisecond, SleepTimeMultiplier: 1.0}

	candles, err := FetchKlinesWithRetry(context.Background(), client, strategy, "BTCUSDT", 0, 10)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestFetchKlinesWithRetry_StopsOnNotRetryable(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	strategy := RetryStrategy{Attempts: 5, FirstSleepTime: time.Millisecond, SleepTimeMultiplier: 1.0}

	_, err := FetchKlinesWithRetry(context.Background(), client, strategy, "BTCUSDT", 0, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call (no retry on 4xx), got %d", calls)
	}
}

func TestFetchKlinesWithRetry_GivesUpAfterAttemptsExhausted(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	strategy := RetryStrategy{Attempts: 3, FirstSleepTime: time.Millisecond, SleepTimeMultiplier: 1.0}

	_, err := FetchKlinesWithRetry(context.Background(), client, strategy, "BTCUSDT", 0, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (attempts exhausted), got %d", calls)
	}
}
