package predictor

import "testing"

func TestValidatePartition(t *testing.T) {
	if !ValidatePartition() {
		t.Fatal("Horizons must partition minutes 0..59 exactly once each")
	}
}

func TestHorizonFor(t *testing.T) {
	cases := map[int]int{
		0:  1,
		5:  6,
		6:  10,
		9:  10,
		10: 12,
		11: 12,
		12: 15,
		14: 15,
		15: 20,
		19: 20,
		20: 30,
		29: 30,
		30: 60,
		59: 60,
	}
	for k, wantMinutes := range cases {
		h, ok := HorizonFor(k)
		if !ok {
			t.Fatalf("HorizonFor(%d): no horizon found", k)
		}
		if h.Minutes != wantMinutes {
			t.Errorf("HorizonFor(%d) = %d minutes, want %d", k, h.Minutes, wantMinutes)
		}
	}
}

func TestHorizonForOutOfRange(t *testing.T) {
	if _, ok := HorizonFor(-1); ok {
		t.Error("HorizonFor(-1) should not resolve")
	}
	if _, ok := HorizonFor(60); ok {
		t.Error("HorizonFor(60) should not resolve")
	}
}
