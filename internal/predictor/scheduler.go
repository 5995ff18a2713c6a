package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"candlesystem/internal/errs"
	"candlesystem/internal/metrics"
	"candlesystem/internal/model"
)

// predictionState names the stages a symbol's tick moves through, per
// the {Needed, DataGated, ModelReady, Emitting, Done} state machine. It
// exists for logging; transitions are idempotent and gated by
// storage existence checks, not held across ticks.
type predictionState int

const (
	StateNeeded predictionState = iota
	StateDataGated
	StateModelReady
	StateEmitting
	StateDone
)

func (s predictionState) String() string {
	switch s {
	case StateNeeded:
		return "needed"
	case StateDataGated:
		return "data_gated"
	case StateModelReady:
		return "model_ready"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// maxHorizonWindow is the largest per-horizon training window (the 60
// minute horizon's), used to size the trailing real-data range checks
// and inference feature window.
var maxHorizonWindow = time.Duration(Horizons[len(Horizons)-1].Window) * time.Minute

// maxFutureOffset is the widest future range any horizon's target looks
// ahead of its reference boundary (the 60-minute horizon's I(h).end).
var maxFutureOffset = time.Duration(Horizons[len(Horizons)-1].RangeEnd) * time.Minute

// Config configures a Scheduler.
type Config struct {
	Symbols      []string
	TickInterval time.Duration
	ArtifactDir  string
	Trainer      Trainer
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 5 * time.Second
	}
	if c.Trainer == nil {
		c.Trainer = LinearTrainer{}
	}
	return c
}

// Scheduler runs the continuous per-symbol prediction loop: detect work,
// acquire or train a model set, run inference for one hour block, and
// persist it, once per symbol per tick.
type Scheduler struct {
	cfg       Config
	store     model.Store
	artifacts *ArtifactStore
	metrics   *metrics.Predictor
}

// New builds a Scheduler.
func New(cfg Config, store model.Store, m *metrics.Predictor) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		artifacts: NewArtifactStore(cfg.ArtifactDir),
		metrics:   m,
	}
}

// Run ticks every cfg.TickInterval until ctx is cancelled. Each tick runs
// to completion before the next sleep; the interval is a ceiling, not a
// floor.
func (s *Scheduler) Run(ctx context.Context) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick processes every tracked symbol sequentially, to bound memory
// during training.
func (s *Scheduler) tick(ctx context.Context) {
	for _, symbol := range s.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := s.processSymbol(ctx, symbol); err != nil {
			slog.ErrorContext(ctx, "predictor tick failed", "symbol", symbol, "error", err)
		}
	}
}

// processSymbol runs steps 1-5 for one symbol. It reconstructs missing
// hours in order: whichever hour LastPredictedHourToday says is next
// gets predicted this tick, so after downtime the earliest gap fills
// first and each satisfied tick advances by exactly one hour until the
// symbol catches up to the current wall-clock hour.
func (s *Scheduler) processSymbol(ctx context.Context, symbol string) error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	currentHourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)

	state := StateNeeded

	lastHour, hadPrior, err := s.store.LastPredictedHourToday(ctx, symbol, today)
	if err != nil {
		return fmt.Errorf("last predicted hour: %w", err)
	}
	nextHour := today
	if hadPrior {
		nextHour = lastHour.Add(time.Hour)
	}

	if nextHour.After(currentHourStart) {
		return nil
	}

	has, err := s.store.HourHasPrediction(ctx, symbol, nextHour)
	if err != nil {
		return fmt.Errorf("hour has prediction: %w", err)
	}
	if has {
		return nil
	}

	covers, err := s.store.RealDataCovers(ctx, symbol, nextHour.Add(-maxHorizonWindow), nextHour)
	if err != nil {
		return fmt.Errorf("real data covers: %w", err)
	}
	if !covers {
		slog.DebugContext(ctx, "predictor: real data gap, retrying next tick", "symbol", symbol, "hour", nextHour)
		return nil
	}
	state = StateDataGated

	dateTag := DateTag(now)
	set, found, err := s.artifacts.Load(symbol, dateTag)
	if err != nil {
		return fmt.Errorf("load model set: %w", err)
	}
	if !found {
		if err := s.artifacts.DeleteStaleSets(symbol, dateTag); err != nil {
			return fmt.Errorf("delete stale model sets: %w", err)
		}

		start := time.Now()
		set, err = s.trainModelSet(ctx, symbol, dateTag, now)
		if s.metrics != nil {
			s.metrics.TrainingDuration.WithLabelValues(symbol).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if errs.Is(err, errs.KindInsufficientData) {
				if s.metrics != nil {
					s.metrics.InsufficientData.WithLabelValues(symbol).Inc()
				}
				slog.DebugContext(ctx, "predictor: insufficient data to train", "symbol", symbol, "error", err)
				return nil
			}
			if s.metrics != nil {
				s.metrics.TrainingFailures.WithLabelValues(symbol).Inc()
			}
			return fmt.Errorf("train model set: %w", err)
		}
		if err := s.artifacts.Save(set); err != nil {
			return fmt.Errorf("save model set: %w", err)
		}
	}
	if s.metrics != nil {
		s.metrics.ModelSetsOnDisk.WithLabelValues(symbol).Set(1)
	}
	state = StateModelReady

	window, err := s.store.CandlesRange(ctx, symbol, nextHour.Add(-maxHorizonWindow), nextHour)
	if err != nil {
		return fmt.Errorf("range for inference window: %w", err)
	}
	if len(window) == 0 {
		return nil
	}
	state = StateEmitting

	inferStart := time.Now()
	prevClose := f64(window[len(window)-1].Close)
	preds := InferHourBlock(symbol, nextHour, window, prevClose, set)
	if s.metrics != nil {
		s.metrics.InferenceDuration.WithLabelValues(symbol).Observe(time.Since(inferStart).Seconds())
	}
	if len(preds) != 60 {
		return fmt.Errorf("expected 60 predictions for hour %s, got %d", nextHour, len(preds))
	}

	if err := s.store.UpsertPredictions(ctx, symbol, preds); err != nil {
		return fmt.Errorf("persist predictions: %w", err)
	}
	state = StateDone

	if s.metrics != nil {
		s.metrics.HoursPredicted.WithLabelValues(symbol).Inc()
	}
	slog.InfoContext(ctx, "predictor: hour predicted", "symbol", symbol, "hour", nextHour, "state", state.String())
	return nil
}

// trainModelSet fits one LinearModel per horizon using the horizon's own
// training window W(h), all referenced from the same boundary T0: the
// most recent UTC hour boundary at or before the latest real candle.
func (s *Scheduler) trainModelSet(ctx context.Context, symbol, dateTag string, now time.Time) (*ModelSet, error) {
	latest, ok, err := s.store.LastCandle(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("last candle: %w", err)
	}
	if !ok {
		return nil, errs.New(errs.KindInsufficientData, fmt.Errorf("no real candles stored for %s", symbol))
	}
	t0 := latest.OpenTime.Truncate(time.Hour)

	set := &ModelSet{
		Symbol:  symbol,
		DateTag: dateTag,
		Models:  map[int]*LinearModel{},
		Scalers: map[int]Scaler{},
		Metas:   map[int]ModelSetMeta{},
	}

	for _, h := range Horizons {
		windowStart := t0.Add(-time.Duration(h.Window) * time.Minute)
		rangeEnd := t0.Add(maxFutureOffset)

		full, err := s.store.CandlesRange(ctx, symbol, windowStart, rangeEnd)
		if err != nil {
			return nil, fmt.Errorf("range for horizon %d: %w", h.Minutes, err)
		}

		expected := h.Window + int(maxFutureOffset.Minutes())
		if len(full) < expected {
			return nil, errs.New(errs.KindInsufficientData,
				fmt.Errorf("horizon %d: need %d contiguous minutes, have %d", h.Minutes, expected, len(full)))
		}

		window := full[:h.Window]
		future := full[h.Window:]

		targets := BuildTargets(window, future, h)
		if len(targets) == 0 {
			return nil, errs.New(errs.KindInsufficientData,
				fmt.Errorf("horizon %d: no complete target rows in training window", h.Minutes))
		}

		features := BuildFeatures(window)[:len(targets)]
		scaler := FitScaler(features)
		scaledRows := make([][]float64, len(features))
		for i, row := range features {
			scaledRows[i] = scaler.Transform(row)
		}

		trained, err := s.cfg.Trainer.Train(scaledRows, targets)
		if err != nil {
			return nil, fmt.Errorf("horizon %d: train: %w", h.Minutes, err)
		}
		lm, ok := trained.(*LinearModel)
		if !ok {
			return nil, fmt.Errorf("horizon %d: trainer produced an unpersistable model type %T", h.Minutes, trained)
		}

		set.Models[h.Minutes] = lm
		set.Scalers[h.Minutes] = scaler
		set.Metas[h.Minutes] = ModelSetMeta{
			Symbol:      symbol,
			HorizonMin:  h.Minutes,
			DateTag:     dateTag,
			WindowStart: windowStart,
			WindowEnd:   t0,
			TrainedAt:   now,
		}
	}
	return set, nil
}
