package predictor

import (
	"math"
	"math/rand"
	"testing"
)

func TestLinearTrainerRecoversKnownLinearRelationship(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	const n = 200
	features := make([][]float64, n)
	targets := make([]Target, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		x1 := rng.Float64()
		features[i] = []float64{x0, x1}
		targets[i] = Target{
			CloseDelta: 2*x0 + 3*x1 + 1,
			HighDelta:  x0 - x1,
			LowDelta:   -x0,
			Volume:     5 + x1,
		}
	}

	trained, err := LinearTrainer{}.Train(features, targets)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	probe := []float64{0.4, 0.6}
	got := trained.Predict(probe)
	want := Target{
		CloseDelta: 2*0.4 + 3*0.6 + 1,
		HighDelta:  0.4 - 0.6,
		LowDelta:   -0.4,
		Volume:     5 + 0.6,
	}

	const tol = 1e-3
	if math.Abs(got.CloseDelta-want.CloseDelta) > tol {
		t.Errorf("CloseDelta: got %v, want %v", got.CloseDelta, want.CloseDelta)
	}
	if math.Abs(got.HighDelta-want.HighDelta) > tol {
		t.Errorf("HighDelta: got %v, want %v", got.HighDelta, want.HighDelta)
	}
	if math.Abs(got.LowDelta-want.LowDelta) > tol {
		t.Errorf("LowDelta: got %v, want %v", got.LowDelta, want.LowDelta)
	}
	if math.Abs(got.Volume-want.Volume) > tol {
		t.Errorf("Volume: got %v, want %v", got.Volume, want.Volume)
	}
}

func TestLinearTrainerRejectsMismatchedLengths(t *testing.T) {
	_, err := LinearTrainer{}.Train([][]float64{{1, 2}}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched features/targets lengths")
	}
}

func TestLinearTrainerRejectsEmptyInput(t *testing.T) {
	_, err := LinearTrainer{}.Train(nil, nil)
	if err == nil {
		t.Fatal("expected error for empty training set")
	}
}
