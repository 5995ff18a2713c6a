package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple business logic from concrete storage
// implementations (Mongo in production, an in-memory fake in tests).

// Store is the full set of durable operations the ingestor, predictor
// and API service need against a symbol's real and predicted candles.
type Store interface {
	// UpsertCandles writes candles idempotently, keyed by (symbol, open_time).
	// Re-upserting an identical candle is a no-op observable side effect.
	UpsertCandles(ctx context.Context, symbol string, candles []Candle) (written int, err error)

	// LastCandle returns the most recent real candle for symbol, or
	// ok=false if the symbol has no stored candles.
	LastCandle(ctx context.Context, symbol string) (c Candle, ok bool, err error)

	// CandlesRange returns real candles for symbol with open_time in [from, to),
	// ordered ascending by open_time.
	CandlesRange(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error)

	// UpsertPredictions writes predicted candles idempotently, keyed by
	// (symbol, open_time, horizon_min).
	UpsertPredictions(ctx context.Context, symbol string, preds []Prediction) error

	// PredictionsRange returns predictions for symbol with open_time in
	// [from, to), ordered ascending by open_time.
	PredictionsRange(ctx context.Context, symbol string, from, to time.Time) ([]Prediction, error)

	// HourHasPrediction reports whether every minute of the UTC hour
	// starting at hourStart already has a stored prediction.
	HourHasPrediction(ctx context.Context, symbol string, hourStart time.Time) (bool, error)

	// LastPredictedHourToday returns the most recent UTC hour (today, UTC)
	// for which predictions exist, or ok=false if none.
	LastPredictedHourToday(ctx context.Context, symbol string, today time.Time) (hour time.Time, ok bool, err error)

	// RealDataCovers reports whether real candles exist for every minute
	// in [from, to) with no gaps.
	RealDataCovers(ctx context.Context, symbol string, from, to time.Time) (bool, error)

	// Stats returns summary counters for symbol.
	Stats(ctx context.Context, symbol string) (Stats, error)

	// EnsureIndexes creates the unique index on open_time (and any other
	// indexes) for symbol's collections. Idempotent.
	EnsureIndexes(ctx context.Context, symbol string) error

	// Close releases underlying resources.
	Close(ctx context.Context) error
}

// SyncCompleteEvent is published by the ingestor after a tick that wrote
// at least one new candle, and consumed by the API service to fan the
// update out over WebSocket.
type SyncCompleteEvent struct {
	Symbol       string    `json:"symbol"`
	NewRecords   int       `json:"new_records"`
	Total        int64     `json:"total"`
	LastPrice    string    `json:"last_price"`
	LastRecordTS time.Time `json:"last_record_ts"`
}

// Publisher publishes sync-complete notifications.
type Publisher interface {
	PublishSyncComplete(ctx context.Context, ev SyncCompleteEvent) error
}

// Subscriber delivers sync-complete notifications to a channel until ctx
// is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan SyncCompleteEvent, error)
	Close() error
}
