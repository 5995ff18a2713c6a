package predictor

import (
	"github.com/shopspring/decimal"

	"candlesystem/internal/model"
)

// Target is the (close_delta, high_delta, low_delta, volume) a
// horizon-h model learns to predict from the feature vector at minute t.
type Target struct {
	CloseDelta float64
	HighDelta  float64
	LowDelta   float64
	Volume     float64
}

// BuildTargets computes, for every minute t in window with a complete
// future range for horizon h, the target aggregated over the future
// candles in [t+h.RangeStart, t+h.RangeEnd) relative to minute t's
// close. future must be the minutes immediately following window,
// contiguous with it. The returned slice has one entry per minute in
// window that has a complete future range; minutes too close to the end
// of window (whose future range would run past the end of future) are
// omitted.
func BuildTargets(window, future []model.Candle, h Horizon) []Target {
	targets := make([]Target, 0, len(window))
	for t := range window {
		start := t + h.RangeStart
		end := t + h.RangeEnd
		if end > len(window)+len(future) {
			break
		}

		agg, ok := aggregateFutureRange(window, future, start, end)
		if !ok {
			break
		}

		closeAtT := window[t].Close
		targets = append(targets, Target{
			CloseDelta: f64(agg.Close.Sub(closeAtT)),
			HighDelta:  f64(agg.High.Sub(closeAtT)),
			LowDelta:   f64(agg.Low.Sub(closeAtT)),
			Volume:     f64(agg.Volume),
		})
	}
	return targets
}

// aggregateFutureRange aggregates candles in index range [start, end)
// over the concatenation of window and future (indices past len(window)
// address future). Returns ok=false if the range reaches past the
// available data.
func aggregateFutureRange(window, future []model.Candle, start, end int) (model.Candle, bool) {
	total := len(window) + len(future)
	if start < 0 || end > total || start >= end {
		return model.Candle{}, false
	}

	get := func(i int) model.Candle {
		if i < len(window) {
			return window[i]
		}
		return future[i-len(window)]
	}

	first := get(start)
	agg := model.Candle{
		Open: first.Open, High: first.High, Low: first.Low, Close: first.Close,
		Volume: decimal.Zero,
	}
	for i := start; i < end; i++ {
		c := get(i)
		if c.High.GreaterThan(agg.High) {
			agg.High = c.High
		}
		if c.Low.LessThan(agg.Low) {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume = agg.Volume.Add(c.Volume)
	}
	return agg, true
}
