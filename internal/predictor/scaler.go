package predictor

// Scaler normalizes feature vectors to [0, 1] per-feature using the
// min/max observed over a training window, and is persisted alongside
// the model weights so inference uses the same normalization training
// did.
type Scaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// FitScaler computes per-feature min/max over rows.
func FitScaler(rows [][]float64) Scaler {
	if len(rows) == 0 {
		return Scaler{}
	}
	n := len(rows[0])
	min := make([]float64, n)
	max := make([]float64, n)
	copy(min, rows[0])
	copy(max, rows[0])

	for _, row := range rows[1:] {
		for i, v := range row {
			if v < min[i] {
				min[i] = v
			}
			if v > max[i] {
				max[i] = v
			}
		}
	}
	return Scaler{Min: min, Max: max}
}

// Transform returns a new slice holding row scaled by the fitted
// min/max; row itself is not modified. A feature whose min equals its max (constant over the
// training window) scales to 0 rather than dividing by zero.
func (s Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		span := s.Max[i] - s.Min[i]
		if span == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - s.Min[i]) / span
	}
	return out
}
