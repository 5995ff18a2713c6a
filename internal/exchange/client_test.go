package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"candlesystem/internal/errs"
	"candlesystem/internal/resilience"
)

func TestFetchKlinesTripsBreakerAfterConsecutiveFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	client.Breaker = resilience.NewCircuitBreaker(2, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := client.FetchKlines(context.Background(), "BTCUSDT", 0, 10); err == nil {
			t.Fatalf("call %d: expected error from 500 response", i)
		}
	}
	if got := client.Breaker.CurrentState(); got != resilience.StateOpen {
		t.Fatalf("breaker state = %v, want open", got)
	}

	_, err := client.FetchKlines(context.Background(), "BTCUSDT", 0, 10)
	if err == nil {
		t.Fatal("expected error once breaker is open")
	}
	if !errs.Is(err, errs.KindUpstreamTransient) {
		t.Fatalf("expected KindUpstreamTransient for open breaker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the third call to be short-circuited, got %d upstream calls", calls)
	}
}

func TestFetchKlinesDoesNotTripBreakerOnBadSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	client.Breaker = resilience.NewCircuitBreaker(2, time.Hour)
	client.Breaker.ShouldTrip = isTransportFailure

	for i := 0; i < 5; i++ {
		if _, err := client.FetchKlines(context.Background(), "DELISTEDUSDT", 0, 10); err == nil {
			t.Fatalf("call %d: expected error from 400 response", i)
		}
	}
	if got := client.Breaker.CurrentState(); got != resilience.StateClosed {
		t.Fatalf("breaker state = %v, want closed: a bad symbol shouldn't trip the shared breaker", got)
	}
}
