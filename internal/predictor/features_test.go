package predictor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"candlesystem/internal/model"
)

func candle(minute int, price float64) model.Candle {
	p := decimal.NewFromFloat(price)
	return model.Candle{
		Symbol:   "BTCUSDT",
		OpenTime: time.Unix(0, 0).UTC().Add(time.Duration(minute) * time.Minute),
		Open:     p,
		High:     p.Add(decimal.NewFromInt(1)),
		Low:      p,
		Close:    p,
		Volume:   decimal.NewFromInt(1),
	}
}

func TestBuildFeaturesLength(t *testing.T) {
	window := make([]model.Candle, 120)
	for i := range window {
		window[i] = candle(i, float64(i))
	}

	rows := BuildFeatures(window)
	if len(rows) != len(window) {
		t.Fatalf("got %d feature rows, want %d", len(rows), len(window))
	}
	for i, row := range rows {
		if len(row) != FeatureVectorLen {
			t.Fatalf("row %d: got %d features, want %d", i, len(row), FeatureVectorLen)
		}
	}
}

func TestBuildFeaturesRawFieldsMatchSourceCandle(t *testing.T) {
	window := []model.Candle{candle(0, 10), candle(1, 20), candle(2, 30)}
	rows := BuildFeatures(window)

	for i, c := range window {
		got := rows[i][:5]
		want := []float64{f64(c.Open), f64(c.High), f64(c.Low), f64(c.Close), f64(c.Volume)}
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("row %d field %d: got %v, want %v", i, j, got[j], want[j])
			}
		}
	}
}

func TestBuildFeaturesForwardFillsBeforeFirstBucketCloses(t *testing.T) {
	// bucketSizes[0] is 2; at minute 0 no 2-minute bucket has ever
	// closed, so the running partial aggregate backs that segment.
	window := []model.Candle{candle(0, 5)}
	rows := BuildFeatures(window)

	bucketOffset := 5 // 5 raw fields precede the first resampled bucket
	got := rows[0][bucketOffset : bucketOffset+5]
	c := window[0]
	want := []float64{f64(c.Open), f64(c.High), f64(c.Low), f64(c.Close), f64(c.Volume)}
	for j := range want {
		if got[j] != want[j] {
			t.Errorf("bucket field %d: got %v, want %v", j, got[j], want[j])
		}
	}
}
