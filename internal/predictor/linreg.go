package predictor

import "fmt"

// ridgeLambda is the L2 regularization strength applied to the normal
// equations. A small positive value keeps the system well-conditioned
// even when bucket features are collinear (adjacent bucket sizes track
// each other closely), without materially biasing the fit.
const ridgeLambda = 1e-3

// LinearModel is a closed-form ridge-regularized linear regression
// fitted independently for each of the four target outputs. It is the
// HorizonModel implementation used when no other Trainer is supplied —
// see DESIGN.md for why this, rather than a third-party ML library,
// backs the horizon model contract.
type LinearModel struct {
	// WeightsByOutput[o] has len(features)+1 entries: a bias term
	// followed by one weight per input feature.
	WeightsByOutput [4][]float64 `json:"weights_by_output"`
}

// LinearTrainer fits a LinearModel via ridge regression.
type LinearTrainer struct{}

func (LinearTrainer) Train(features [][]float64, targets []Target) (HorizonModel, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("linreg: no training rows")
	}
	if len(features) != len(targets) {
		return nil, fmt.Errorf("linreg: %d feature rows but %d targets", len(features), len(targets))
	}

	design := designMatrix(features)

	outputs := [4][]float64{
		extract(targets, func(t Target) float64 { return t.CloseDelta }),
		extract(targets, func(t Target) float64 { return t.HighDelta }),
		extract(targets, func(t Target) float64 { return t.LowDelta }),
		extract(targets, func(t Target) float64 { return t.Volume }),
	}

	var model LinearModel
	for o, y := range outputs {
		w, err := ridgeSolve(design, y, ridgeLambda)
		if err != nil {
			return nil, fmt.Errorf("linreg: output %d: %w", o, err)
		}
		model.WeightsByOutput[o] = w
	}
	return &model, nil
}

func (m *LinearModel) Predict(features []float64) Target {
	row := append([]float64{1.0}, features...)
	return Target{
		CloseDelta: dot(row, m.WeightsByOutput[0]),
		HighDelta:  dot(row, m.WeightsByOutput[1]),
		LowDelta:   dot(row, m.WeightsByOutput[2]),
		Volume:     dot(row, m.WeightsByOutput[3]),
	}
}

func extract(targets []Target, f func(Target) float64) []float64 {
	out := make([]float64, len(targets))
	for i, t := range targets {
		out[i] = f(t)
	}
	return out
}

// designMatrix prepends a bias column of 1s to each feature row.
func designMatrix(features [][]float64) [][]float64 {
	out := make([][]float64, len(features))
	for i, row := range features {
		out[i] = append([]float64{1.0}, row...)
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// ridgeSolve fits w minimizing ||Xw - y||^2 + lambda*||w||^2 via the
// normal equations (X^T X + lambda I) w = X^T y, solved by Gauss-Jordan
// elimination with partial pivoting.
func ridgeSolve(x [][]float64, y []float64, lambda float64) ([]float64, error) {
	n := len(x[0])
	xtx := make([][]float64, n)
	for i := range xtx {
		xtx[i] = make([]float64, n)
	}
	xty := make([]float64, n)

	for _, row := range x {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < n; i++ {
		xtx[i][i] += lambda
	}
	for r, row := range x {
		for i := 0; i < n; i++ {
			xty[i] += row[i] * y[r]
		}
	}

	return gaussJordanSolve(xtx, xty)
}

// gaussJordanSolve solves Ax = b for square A via Gauss-Jordan
// elimination with partial pivoting.
func gaussJordanSolve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	aug := make([][]float64, n)
	for i := range a {
		aug[i] = append(append([]float64{}, a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(aug[r][col]) > abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if abs(aug[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular matrix at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pivotVal := aug[col][col]
		for j := col; j <= n; j++ {
			aug[col][j] /= pivotVal
		}

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			for j := col; j <= n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = aug[i][n]
	}
	return x, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
