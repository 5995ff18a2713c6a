package predictor

import (
	"testing"
	"time"
)

func fakeModelSet(symbol, dateTag string) *ModelSet {
	set := &ModelSet{
		Symbol:  symbol,
		DateTag: dateTag,
		Models:  map[int]*LinearModel{},
		Scalers: map[int]Scaler{},
		Metas:   map[int]ModelSetMeta{},
	}
	for _, h := range Horizons {
		set.Models[h.Minutes] = &LinearModel{
			WeightsByOutput: [4][]float64{
				{float64(h.Minutes), 1, 2},
				{0.1, 0.2},
				{-1},
				{3, 3, 3},
			},
		}
		set.Scalers[h.Minutes] = Scaler{Min: []float64{0, 0}, Max: []float64{1, 1}}
		set.Metas[h.Minutes] = ModelSetMeta{
			Symbol: symbol, HorizonMin: h.Minutes, DateTag: dateTag,
			WindowStart: time.Unix(0, 0).UTC(),
			WindowEnd:   time.Unix(0, 0).UTC().Add(time.Hour),
			TrainedAt:   time.Unix(100, 0).UTC(),
		}
	}
	return set
}

func TestArtifactStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	set := fakeModelSet("BTCUSDT", "20260101")

	if err := store.Save(set); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := store.Load("BTCUSDT", "20260101")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load: expected model set to be found")
	}
	if len(loaded.Models) != len(Horizons) {
		t.Fatalf("got %d horizon models, want %d", len(loaded.Models), len(Horizons))
	}
	for _, h := range Horizons {
		got := loaded.Models[h.Minutes].WeightsByOutput[0][0]
		if got != float64(h.Minutes) {
			t.Errorf("horizon %d: got weight %v, want %v", h.Minutes, got, h.Minutes)
		}
	}
}

func TestArtifactStoreLoadMissingReturnsNotFound(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	_, ok, err := store.Load("ETHUSDT", "20260101")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected not found for a symbol with no saved model set")
	}
}

func TestArtifactStoreValidDateTag(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	set := fakeModelSet("BTCUSDT", "20260101")
	if err := store.Save(set); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.ValidDateTag("BTCUSDT", "20260101") {
		t.Error("expected today's tag to be valid after save")
	}
	if store.ValidDateTag("BTCUSDT", "20260102") {
		t.Error("a different date tag should not be valid")
	}
}

func TestArtifactStoreDeleteStaleSets(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	old := fakeModelSet("BTCUSDT", "20251231")
	fresh := fakeModelSet("BTCUSDT", "20260101")
	if err := store.Save(old); err != nil {
		t.Fatalf("Save old: %v", err)
	}
	if err := store.Save(fresh); err != nil {
		t.Fatalf("Save fresh: %v", err)
	}

	if err := store.DeleteStaleSets("BTCUSDT", "20260101"); err != nil {
		t.Fatalf("DeleteStaleSets: %v", err)
	}

	if store.ValidDateTag("BTCUSDT", "20251231") {
		t.Error("stale set should have been deleted")
	}
	if !store.ValidDateTag("BTCUSDT", "20260101") {
		t.Error("fresh set should have been kept")
	}
}
