package predictor

// Horizon describes one of the twelve minute-ahead horizons the
// predictor trains a dedicated model for: how far ahead it predicts
// (Minutes), how many trailing minutes of real data it trains on
// (Window), and which minute offsets of a predicted hour it owns
// (RangeStart, RangeEnd — half-open, minutes ahead of the hour start).
type Horizon struct {
	Minutes    int
	Window     int
	RangeStart int
	RangeEnd   int
}

// Horizons is the fixed partition of the 12 horizons over a predicted
// hour's 60 minutes. Every minute offset 0..59 is covered by exactly
// one horizon's [RangeStart, RangeEnd) range.
var Horizons = []Horizon{
	{Minutes: 1, Window: 2880, RangeStart: 0, RangeEnd: 1},
	{Minutes: 2, Window: 2880, RangeStart: 1, RangeEnd: 2},
	{Minutes: 3, Window: 2880, RangeStart: 2, RangeEnd: 3},
	{Minutes: 4, Window: 2880, RangeStart: 3, RangeEnd: 4},
	{Minutes: 5, Window: 2880, RangeStart: 4, RangeEnd: 5},
	{Minutes: 6, Window: 2880, RangeStart: 5, RangeEnd: 6},
	{Minutes: 10, Window: 4320, RangeStart: 6, RangeEnd: 10},
	{Minutes: 12, Window: 4320, RangeStart: 10, RangeEnd: 12},
	{Minutes: 15, Window: 4320, RangeStart: 12, RangeEnd: 15},
	{Minutes: 20, Window: 5760, RangeStart: 15, RangeEnd: 20},
	{Minutes: 30, Window: 5760, RangeStart: 20, RangeEnd: 30},
	{Minutes: 60, Window: 8640, RangeStart: 30, RangeEnd: 60},
}

// HorizonFor returns the horizon that owns minute offset k (0..59) of a
// predicted hour.
func HorizonFor(k int) (Horizon, bool) {
	for _, h := range Horizons {
		if k >= h.RangeStart && k < h.RangeEnd {
			return h, true
		}
	}
	return Horizon{}, false
}

// ValidatePartition checks that Horizons covers minutes 0..59 exactly
// once each, with no gaps or overlaps. Exercised by tests; the table
// above is fixed at compile time so this never runs in production, but
// it documents and enforces the invariant the table must satisfy.
func ValidatePartition() bool {
	covered := make([]bool, 60)
	for _, h := range Horizons {
		for k := h.RangeStart; k < h.RangeEnd; k++ {
			if k < 0 || k >= 60 || covered[k] {
				return false
			}
			covered[k] = true
		}
	}
	for _, c := range covered {
		if !c {
			return false
		}
	}
	return true
}

// bucketSizes are the trailing-window resample sizes (minutes) used to
// build the feature vector, per the feature-engineering design.
var bucketSizes = []int{2, 3, 4, 5, 6, 10, 12, 15, 20, 30, 60}

// FeatureVectorLen is 5 raw OHLCV fields plus 5 fields per resample bucket.
const FeatureVectorLen = 5 + len(bucketSizes)*5
