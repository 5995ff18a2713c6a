// Package mongo implements model.Store against MongoDB, with one
// real-candle collection and one prediction collection per symbol.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"candlesystem/internal/errs"
	"candlesystem/internal/model"
)

// wrapStoreErr classifies a Mongo failure for the retry/propagation
// policy: a lost connection, timeout, or server-selection failure is
// StorageUnavailable and should surface to HTTP callers as 503;
// anything else keeps its plain wrapped form and falls back to 500.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		strings.Contains(err.Error(), "server selection error") {
		return errs.New(errs.KindStorageUnavailable, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Config configures the Mongo-backed store.
type Config struct {
	URI      string // e.g. "mongodb://localhost:27017"
	Database string // e.g. "candlesystem"
}

// Store is a single-client Mongo store satisfying model.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New dials Mongo and pings it, failing fast if the cluster is unreachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, wrapStoreErr("mongo connect", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, wrapStoreErr("mongo ping", err)
	}

	log.Printf("[mongo] connected to %s, database %s", cfg.URI, cfg.Database)
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// collName lowercases symbol for collection naming; API responses
// uppercase it back for display.
func collName(symbol string) string {
	return strings.ToLower(symbol)
}

func (s *Store) candlesColl(symbol string) *mongo.Collection {
	return s.db.Collection("klines_" + collName(symbol))
}

func (s *Store) predictionsColl(symbol string) *mongo.Collection {
	return s.db.Collection("predictions_" + collName(symbol))
}

// EnsureIndexes creates a symbol's unique indexes: open_time on the
// candle collection, (open_time, horizon_min) on the prediction
// collection. Idempotent — safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context, symbol string) error {
	uniqueOpenTime := mongo.IndexModel{
		Keys:    bson.D{{Key: "open_time", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.candlesColl(symbol).Indexes().CreateOne(ctx, uniqueOpenTime); err != nil {
		return wrapStoreErr(fmt.Sprintf("ensure candle index for %s", symbol), err)
	}

	uniquePrediction := mongo.IndexModel{
		Keys:    bson.D{{Key: "open_time", Value: 1}, {Key: "horizon_min", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.predictionsColl(symbol).Indexes().CreateOne(ctx, uniquePrediction); err != nil {
		return wrapStoreErr(fmt.Sprintf("ensure prediction index for %s", symbol), err)
	}
	return nil
}

// UpsertCandles writes candles idempotently keyed by open_time.
func (s *Store) UpsertCandles(ctx context.Context, symbol string, candles []model.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	coll := s.candlesColl(symbol)
	written := 0
	for _, c := range candles {
		c.Symbol = symbol
		filter := bson.M{"open_time": c.OpenTime}
		update := bson.M{"$set": c}
		res, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			return written, wrapStoreErr(fmt.Sprintf("upsert candle %s", c.Key()), err)
		}
		if res.UpsertedCount > 0 || res.ModifiedCount > 0 {
			written++
		}
	}
	return written, nil
}

// LastCandle returns the most recent real candle for symbol.
func (s *Store) LastCandle(ctx context.Context, symbol string) (model.Candle, bool, error) {
	var c model.Candle
	opts := options.FindOne().SetSort(bson.D{{Key: "open_time", Value: -1}})
	err := s.candlesColl(symbol).FindOne(ctx, bson.M{}, opts).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, wrapStoreErr(fmt.Sprintf("last candle %s", symbol), err)
	}
	return c, true, nil
}

// CandlesRange returns real candles in [from, to) ordered ascending.
func (s *Store) CandlesRange(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	filter := bson.M{"open_time": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "open_time", Value: 1}})
	cur, err := s.candlesColl(symbol).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapStoreErr(fmt.Sprintf("candles range %s", symbol), err)
	}
	defer cur.Close(ctx)

	var out []model.Candle
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapStoreErr(fmt.Sprintf("candles range decode %s", symbol), err)
	}
	return out, nil
}

// UpsertPredictions writes predictions idempotently keyed by
// (open_time, horizon_min).
func (s *Store) UpsertPredictions(ctx context.Context, symbol string, preds []model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	coll := s.predictionsColl(symbol)
	for _, p := range preds {
		p.Symbol = symbol
		filter := bson.M{"open_time": p.OpenTime, "horizon_min": p.HorizonMin}
		update := bson.M{"$set": p}
		if _, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return wrapStoreErr(fmt.Sprintf("upsert prediction %s %v h%d", symbol, p.OpenTime, p.HorizonMin), err)
		}
	}
	return nil
}

// PredictionsRange returns predictions in [from, to) ordered ascending.
func (s *Store) PredictionsRange(ctx context.Context, symbol string, from, to time.Time) ([]model.Prediction, error) {
	filter := bson.M{"open_time": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "open_time", Value: 1}})
	cur, err := s.predictionsColl(symbol).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapStoreErr(fmt.Sprintf("predictions range %s", symbol), err)
	}
	defer cur.Close(ctx)

	var out []model.Prediction
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapStoreErr(fmt.Sprintf("predictions range decode %s", symbol), err)
	}
	return out, nil
}

// HourHasPrediction reports whether all 60 minutes of the UTC hour
// starting at hourStart have a stored prediction, at whichever horizon
// produced each minute (the horizon varies by minute offset per the
// horizon partition, so completeness is a document count, not a filter
// on a fixed horizon_min).
func (s *Store) HourHasPrediction(ctx context.Context, symbol string, hourStart time.Time) (bool, error) {
	hourEnd := hourStart.Add(time.Hour)
	filter := bson.M{"open_time": bson.M{"$gte": hourStart, "$lt": hourEnd}}
	count, err := s.predictionsColl(symbol).CountDocuments(ctx, filter)
	if err != nil {
		return false, wrapStoreErr(fmt.Sprintf("hour has prediction %s", symbol), err)
	}
	return count >= 60, nil
}

// LastPredictedHourToday returns the latest UTC hour boundary today with
// a full set of predictions.
func (s *Store) LastPredictedHourToday(ctx context.Context, symbol string, today time.Time) (time.Time, bool, error) {
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	filter := bson.M{"open_time": bson.M{"$gte": dayStart, "$lt": dayEnd}}
	opts := options.Find().SetSort(bson.D{{Key: "open_time", Value: -1}})
	cur, err := s.predictionsColl(symbol).Find(ctx, filter, opts)
	if err != nil {
		return time.Time{}, false, wrapStoreErr(fmt.Sprintf("last predicted hour %s", symbol), err)
	}
	defer cur.Close(ctx)

	var preds []model.Prediction
	if err := cur.All(ctx, &preds); err != nil {
		return time.Time{}, false, wrapStoreErr(fmt.Sprintf("last predicted hour decode %s", symbol), err)
	}

	counts := map[time.Time]int{}
	var latest time.Time
	for _, p := range preds {
		hour := p.OpenTime.Truncate(time.Hour)
		counts[hour]++
		if hour.After(latest) {
			latest = hour
		}
	}
	for hour := latest; !hour.Before(dayStart); hour = hour.Add(-time.Hour) {
		if counts[hour] >= 60 {
			return hour, true, nil
		}
	}
	return time.Time{}, false, nil
}

// RealDataCovers reports whether real candles exist for every minute in
// [from, to) with no gaps.
func (s *Store) RealDataCovers(ctx context.Context, symbol string, from, to time.Time) (bool, error) {
	wantMinutes := int(to.Sub(from) / time.Minute)
	if wantMinutes <= 0 {
		return true, nil
	}
	count, err := s.candlesColl(symbol).CountDocuments(ctx, bson.M{
		"open_time": bson.M{"$gte": from, "$lt": to},
	})
	if err != nil {
		return false, wrapStoreErr(fmt.Sprintf("real data covers %s", symbol), err)
	}
	return int(count) == wantMinutes, nil
}

// Stats returns summary counters for symbol.
func (s *Store) Stats(ctx context.Context, symbol string) (model.Stats, error) {
	stats := model.Stats{Symbol: symbol}

	count, err := s.candlesColl(symbol).CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, wrapStoreErr(fmt.Sprintf("stats count %s", symbol), err)
	}
	stats.CandleCount = count

	if first, ok, err := s.firstCandle(ctx, symbol); err != nil {
		return stats, err
	} else if ok {
		stats.FirstOpenTime = first.OpenTime
	}
	if last, ok, err := s.LastCandle(ctx, symbol); err != nil {
		return stats, err
	} else if ok {
		stats.LastOpenTime = last.OpenTime
	}

	predCount, err := s.predictionsColl(symbol).CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, wrapStoreErr(fmt.Sprintf("stats prediction count %s", symbol), err)
	}
	stats.PredictionCount = predCount

	if hour, ok, err := s.LastPredictedHourToday(ctx, symbol, time.Now().UTC()); err != nil {
		return stats, err
	} else if ok {
		stats.LastPredictedHour = hour
		stats.HasPredictionsToday = true
	}

	return stats, nil
}

func (s *Store) firstCandle(ctx context.Context, symbol string) (model.Candle, bool, error) {
	var c model.Candle
	opts := options.FindOne().SetSort(bson.D{{Key: "open_time", Value: 1}})
	err := s.candlesColl(symbol).FindOne(ctx, bson.M{}, opts).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, wrapStoreErr(fmt.Sprintf("first candle %s", symbol), err)
	}
	return c, true, nil
}

// Close disconnects the Mongo client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
