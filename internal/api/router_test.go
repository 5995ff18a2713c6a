package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"candlesystem/internal/gateway"
	"candlesystem/internal/model"
	"candlesystem/internal/store/memstore"
)

func newTestDeps(t *testing.T) (*memstore.Store, Deps) {
	t.Helper()
	store := memstore.New()
	hub := gateway.NewHub(nil)
	deps := Deps{Store: store, Symbols: []string{"BTCUSDT"}, Hub: hub}
	return store, deps
}

func TestHandleSymbolsReturnsTrackedSymbols(t *testing.T) {
	store, deps := newTestDeps(t)
	ctx := context.Background()
	_, err := store.UpsertCandles(ctx, "BTCUSDT", []model.Candle{{
		Symbol: "BTCUSDT", OpenTime: time.Now().UTC().Truncate(time.Minute),
		Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101),
		Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100), Volume: decimal.NewFromInt(5),
	}})
	if err != nil {
		t.Fatalf("UpsertCandles: %v", err)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/symbols", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleDataRejectsUnknownSymbol(t *testing.T) {
	_, deps := newTestDeps(t)
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data/DOGEUSDT", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDataReturnsRangeForTrackedSymbol(t *testing.T) {
	store, deps := newTestDeps(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Minute)
	_, err := store.UpsertCandles(ctx, "BTCUSDT", []model.Candle{{
		Symbol: "BTCUSDT", OpenTime: now,
		Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101),
		Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100), Volume: decimal.NewFromInt(5),
	}})
	if err != nil {
		t.Fatalf("UpsertCandles: %v", err)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data/btcusdt", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleSyncWithoutSyncerReturns503(t *testing.T) {
	_, deps := newTestDeps(t)
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	_, deps := newTestDeps(t)
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
