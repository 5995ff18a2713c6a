// Package memstore is an in-memory model.Store used by tests, following
// the same semantics as the Mongo-backed store without a live database.
package memstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"candlesystem/internal/model"
)

type symbolData struct {
	candles     map[time.Time]model.Candle
	predictions map[predKey]model.Prediction
}

type predKey struct {
	openTime time.Time
	horizon  int
}

// Store is a mutex-guarded in-memory implementation of model.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]*symbolData
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]*symbolData)}
}

func (s *Store) sym(symbol string) *symbolData {
	d, ok := s.data[symbol]
	if !ok {
		d = &symbolData{
			candles:     make(map[time.Time]model.Candle),
			predictions: make(map[predKey]model.Prediction),
		}
		s.data[symbol] = d
	}
	return d
}

func (s *Store) EnsureIndexes(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sym(symbol)
	return nil
}

func (s *Store) UpsertCandles(ctx context.Context, symbol string, candles []model.Candle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.sym(symbol)
	written := 0
	for _, c := range candles {
		c.Symbol = symbol
		key := c.OpenTime.UTC()
		if existing, ok := d.candles[key]; !ok || !reflect.DeepEqual(existing, c) {
			written++
		}
		d.candles[key] = c
	}
	return written, nil
}

func (s *Store) LastCandle(ctx context.Context, symbol string) (model.Candle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[symbol]
	if !ok || len(d.candles) == 0 {
		return model.Candle{}, false, nil
	}
	var latest model.Candle
	var found bool
	for _, c := range d.candles {
		if !found || c.OpenTime.After(latest.OpenTime) {
			latest = c
			found = true
		}
	}
	return latest, found, nil
}

func (s *Store) CandlesRange(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[symbol]
	if !ok {
		return nil, nil
	}
	out := make([]model.Candle, 0)
	for _, c := range d.candles {
		if !c.OpenTime.Before(from) && c.OpenTime.Before(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

func (s *Store) UpsertPredictions(ctx context.Context, symbol string, preds []model.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.sym(symbol)
	for _, p := range preds {
		p.Symbol = symbol
		d.predictions[predKey{openTime: p.OpenTime.UTC(), horizon: p.HorizonMin}] = p
	}
	return nil
}

func (s *Store) PredictionsRange(ctx context.Context, symbol string, from, to time.Time) ([]model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[symbol]
	if !ok {
		return nil, nil
	}
	out := make([]model.Prediction, 0)
	for _, p := range d.predictions {
		if !p.OpenTime.Before(from) && p.OpenTime.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

func (s *Store) HourHasPrediction(ctx context.Context, symbol string, hourStart time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[symbol]
	if !ok {
		return false, nil
	}
	hourEnd := hourStart.Add(time.Hour)
	count := 0
	for k := range d.predictions {
		if !k.openTime.Before(hourStart) && k.openTime.Before(hourEnd) {
			count++
		}
	}
	return count >= 60, nil
}

func (s *Store) LastPredictedHourToday(ctx context.Context, symbol string, today time.Time) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPredictedHourTodayLocked(symbol, today)
}

// lastPredictedHourTodayLocked is the body of LastPredictedHourToday for
// callers that already hold s.mu, so Stats doesn't need to re-acquire a
// read lock it's already holding.
func (s *Store) lastPredictedHourTodayLocked(symbol string, today time.Time) (time.Time, bool, error) {
	d, ok := s.data[symbol]
	if !ok {
		return time.Time{}, false, nil
	}
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	counts := map[time.Time]int{}
	for k := range d.predictions {
		if k.openTime.Before(dayStart) || !k.openTime.Before(dayEnd) {
			continue
		}
		counts[k.openTime.Truncate(time.Hour)]++
	}

	var best time.Time
	var found bool
	for hour, c := range counts {
		if c >= 60 && (!found || hour.After(best)) {
			best = hour
			found = true
		}
	}
	return best, found, nil
}

func (s *Store) RealDataCovers(ctx context.Context, symbol string, from, to time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := int(to.Sub(from) / time.Minute)
	if want <= 0 {
		return true, nil
	}
	d, ok := s.data[symbol]
	if !ok {
		return false, nil
	}
	got := 0
	for t := range d.candles {
		if !t.Before(from) && t.Before(to) {
			got++
		}
	}
	return got == want, nil
}

func (s *Store) Stats(ctx context.Context, symbol string) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := model.Stats{Symbol: symbol}
	d, ok := s.data[symbol]
	if !ok {
		return stats, nil
	}
	stats.CandleCount = int64(len(d.candles))
	stats.PredictionCount = int64(len(d.predictions))

	var first, last time.Time
	for t := range d.candles {
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	stats.FirstOpenTime = first
	stats.LastOpenTime = last

	if hour, found, _ := s.lastPredictedHourTodayLocked(symbol, time.Now().UTC()); found {
		stats.LastPredictedHour = hour
		stats.HasPredictionsToday = true
	}
	return stats, nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
