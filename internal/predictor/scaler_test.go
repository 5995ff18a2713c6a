package predictor

import "testing"

func TestFitScalerAndTransform(t *testing.T) {
	rows := [][]float64{
		{0, 10},
		{5, 20},
		{10, 10},
	}
	scaler := FitScaler(rows)

	got := scaler.Transform([]float64{5, 15})
	want := []float64{0.5, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("feature %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScalerTransformHandlesZeroSpan(t *testing.T) {
	scaler := FitScaler([][]float64{{3, 3}, {3, 7}})
	got := scaler.Transform([]float64{3, 5})
	if got[0] != 0 {
		t.Errorf("constant feature should scale to 0, got %v", got[0])
	}
	if got[1] != 0.5 {
		t.Errorf("varying feature: got %v, want 0.5", got[1])
	}
}
