package predictor

import (
	"github.com/shopspring/decimal"

	"candlesystem/internal/model"
)

// bucketState tracks one trailing resample bucket's in-progress
// aggregate, the same incremental O(1) merge the live timeframe
// resampler uses for streaming candles, applied here to a finite,
// already-known window of minute candles.
type bucketState struct {
	size       int
	idx        int // which bucket (minute index / size) is currently forming
	open       decimal.Decimal
	high       decimal.Decimal
	low        decimal.Decimal
	close      decimal.Decimal
	volume     decimal.Decimal
	started    bool
	lastClosed [5]float64 // open, high, low, close, volume of the most recently completed bucket
	haveClosed bool
}

func (b *bucketState) reset(c model.Candle) {
	b.open = c.Open
	b.high = c.High
	b.low = c.Low
	b.close = c.Close
	b.volume = c.Volume
	b.started = true
}

func (b *bucketState) merge(c model.Candle) {
	if c.High.GreaterThan(b.high) {
		b.high = c.High
	}
	if c.Low.LessThan(b.low) {
		b.low = c.Low
	}
	b.close = c.Close
	b.volume = b.volume.Add(c.Volume)
}

func (b *bucketState) snapshotCurrent() [5]float64 {
	return [5]float64{
		f64(b.open), f64(b.high), f64(b.low), f64(b.close), f64(b.volume),
	}
}

func f64(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// BuildFeatures computes the 60-wide feature vector for each minute in
// window, in order. window must be contiguous, gap-free, one-minute
// candles. The returned slice has the same length as window; features
// for early minutes reflect whatever bucket history has accumulated
// since the start of window (forward-filled from the most recent
// complete bucket, or the running partial bucket before any bucket of
// that size has ever completed).
func BuildFeatures(window []model.Candle) [][]float64 {
	states := make([]*bucketState, len(bucketSizes))
	for i, size := range bucketSizes {
		states[i] = &bucketState{size: size}
	}

	out := make([][]float64, len(window))
	for i, c := range window {
		vec := make([]float64, 0, FeatureVectorLen)
		vec = append(vec, f64(c.Open), f64(c.High), f64(c.Low), f64(c.Close), f64(c.Volume))

		for _, st := range states {
			curBucket := i / st.size
			if !st.started {
				st.idx = curBucket
				st.reset(c)
			} else if curBucket != st.idx {
				st.lastClosed = st.snapshotCurrent()
				st.haveClosed = true
				st.idx = curBucket
				st.reset(c)
			} else {
				st.merge(c)
			}

			complete := (i+1)%st.size == 0
			if complete {
				vec = append(vec, st.snapshotCurrent()[:]...)
			} else if st.haveClosed {
				vec = append(vec, st.lastClosed[:]...)
			} else {
				// No bucket of this size has ever completed yet; use the
				// partial running aggregate as the best available signal.
				vec = append(vec, st.snapshotCurrent()[:]...)
			}
		}

		out[i] = vec
	}
	return out
}
