package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ModelSetMeta records the training window bounds and tag for one
// horizon's artifacts, persisted alongside the weights and scaler so a
// loaded model set is self-describing.
type ModelSetMeta struct {
	Symbol      string    `json:"symbol"`
	HorizonMin  int       `json:"horizon_min"`
	DateTag     string    `json:"date_tag"` // YYYYMMDD
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	TrainedAt   time.Time `json:"trained_at"`
}

// ModelSet is the full set of per-horizon models for one symbol, all
// tagged with the same training date.
type ModelSet struct {
	Symbol  string
	DateTag string
	Models  map[int]*LinearModel
	Scalers map[int]Scaler
	Metas   map[int]ModelSetMeta
}

// ArtifactStore persists and loads model sets under a base directory,
// one subdirectory per symbol, one per date tag, one per horizon.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore returns a store rooted at baseDir.
func NewArtifactStore(baseDir string) *ArtifactStore {
	return &ArtifactStore{baseDir: baseDir}
}

func (s *ArtifactStore) symbolDir(symbol string) string {
	return filepath.Join(s.baseDir, symbol)
}

func (s *ArtifactStore) dateDir(symbol, dateTag string) string {
	return filepath.Join(s.symbolDir(symbol), dateTag)
}

// ValidDateTag reports whether a model set directory tagged todayTag
// exists on disk for symbol.
func (s *ArtifactStore) ValidDateTag(symbol, todayTag string) bool {
	_, err := os.Stat(s.dateDir(symbol, todayTag))
	return err == nil
}

// DeleteStaleSets removes any date directories for symbol other than
// keepTag.
func (s *ArtifactStore) DeleteStaleSets(symbol, keepTag string) error {
	entries, err := os.ReadDir(s.symbolDir(symbol))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list model sets for %s: %w", symbol, err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == keepTag {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.symbolDir(symbol), e.Name())); err != nil {
			return fmt.Errorf("remove stale model set %s/%s: %w", symbol, e.Name(), err)
		}
	}
	return nil
}

// Save writes set to a staging directory and atomically renames it into
// place, so a crash mid-write never leaves a partially-written date
// directory that ValidDateTag would mistake for complete.
func (s *ArtifactStore) Save(set *ModelSet) error {
	staging := s.dateDir(set.Symbol, set.DateTag) + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	for _, h := range Horizons {
		model, ok := set.Models[h.Minutes]
		if !ok {
			continue
		}
		hdir := filepath.Join(staging, fmt.Sprintf("h%d", h.Minutes))
		if err := os.MkdirAll(hdir, 0o755); err != nil {
			return fmt.Errorf("create horizon dir h%d: %w", h.Minutes, err)
		}
		if err := writeJSON(filepath.Join(hdir, "weights.json"), model); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(hdir, "scaler.json"), set.Scalers[h.Minutes]); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(hdir, "meta.json"), set.Metas[h.Minutes]); err != nil {
			return err
		}
	}

	final := s.dateDir(set.Symbol, set.DateTag)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("clear previous final dir: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("rename staged model set into place: %w", err)
	}
	return nil
}

// Load reads the model set tagged dateTag for symbol, if present.
func (s *ArtifactStore) Load(symbol, dateTag string) (*ModelSet, bool, error) {
	dir := s.dateDir(symbol, dateTag)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read model set dir: %w", err)
	}

	set := &ModelSet{
		Symbol:  symbol,
		DateTag: dateTag,
		Models:  map[int]*LinearModel{},
		Scalers: map[int]Scaler{},
		Metas:   map[int]ModelSetMeta{},
	}

	var horizonMin int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fmt.Sscanf(e.Name(), "h%d", &horizonMin); err != nil {
			continue
		}
		hdir := filepath.Join(dir, e.Name())

		var model LinearModel
		if err := readJSON(filepath.Join(hdir, "weights.json"), &model); err != nil {
			return nil, false, err
		}
		var scaler Scaler
		if err := readJSON(filepath.Join(hdir, "scaler.json"), &scaler); err != nil {
			return nil, false, err
		}
		var meta ModelSetMeta
		if err := readJSON(filepath.Join(hdir, "meta.json"), &meta); err != nil {
			return nil, false, err
		}

		set.Models[horizonMin] = &model
		set.Scalers[horizonMin] = scaler
		set.Metas[horizonMin] = meta
	}

	if len(set.Models) != len(Horizons) {
		return nil, false, nil // incomplete set, treat as absent
	}
	return set, true, nil
}

// DateTag formats a time as the YYYYMMDD tag model artifacts are keyed by.
func DateTag(t time.Time) string {
	return t.UTC().Format("20060102")
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}
