package predictor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"candlesystem/internal/model"
)

func ohlcv(minute int, open, high, low, close, volume float64) model.Candle {
	return model.Candle{
		Symbol:   "BTCUSDT",
		OpenTime: time.Unix(0, 0).UTC().Add(time.Duration(minute) * time.Minute),
		Open:     decimal.NewFromFloat(open),
		High:     decimal.NewFromFloat(high),
		Low:      decimal.NewFromFloat(low),
		Close:    decimal.NewFromFloat(close),
		Volume:   decimal.NewFromFloat(volume),
	}
}

func TestBuildTargetsComputesDeltasFromFutureRange(t *testing.T) {
	// Horizon looking one minute ahead, I(h) = [0, 1): the target for
	// minute t is just minute t's own candle relative to its own close,
	// so the close delta is zero, the high/low deltas are that candle's
	// own +1/-1 range, and volume equals that minute's volume.
	h := Horizon{Minutes: 1, Window: 3, RangeStart: 0, RangeEnd: 1}

	window := []model.Candle{
		ohlcv(0, 100, 101, 99, 100, 5),
		ohlcv(1, 110, 111, 109, 110, 6),
		ohlcv(2, 120, 121, 119, 120, 7),
	}

	targets := BuildTargets(window, nil, h)
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3", len(targets))
	}
	for i, tg := range targets {
		if tg.CloseDelta != 0 || tg.HighDelta != 1 || tg.LowDelta != -1 {
			t.Errorf("minute %d: got %+v, want zero close delta, +1 high delta, -1 low delta", i, tg)
		}
		if tg.Volume != float64(5+i) {
			t.Errorf("minute %d: got volume %v, want %v", i, tg.Volume, float64(5+i))
		}
	}
}

func TestBuildTargetsUsesFutureCandlesWhenRangeExtendsPastWindow(t *testing.T) {
	// Horizon looking 2-3 minutes ahead: I(h) = [2, 3).
	h := Horizon{Minutes: 3, Window: 2, RangeStart: 2, RangeEnd: 3}

	window := []model.Candle{
		ohlcv(0, 100, 100, 100, 100, 1),
		ohlcv(1, 100, 100, 100, 100, 1),
	}
	future := []model.Candle{
		ohlcv(2, 100, 100, 100, 150, 9), // window[0]'s target range: index 0+2=2
	}

	targets := BuildTargets(window, future, h)
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1 (only minute 0 has a complete future range)", len(targets))
	}
	if targets[0].CloseDelta != 50 {
		t.Errorf("close_delta: got %v, want 50 (150 - 100)", targets[0].CloseDelta)
	}
	if targets[0].Volume != 9 {
		t.Errorf("volume: got %v, want 9", targets[0].Volume)
	}
}

func TestBuildTargetsStopsWhenFutureRangeIncomplete(t *testing.T) {
	h := Horizon{Minutes: 5, Window: 3, RangeStart: 4, RangeEnd: 5}

	window := []model.Candle{
		ohlcv(0, 100, 100, 100, 100, 1),
		ohlcv(1, 100, 100, 100, 100, 1),
	}
	targets := BuildTargets(window, nil, h)
	if len(targets) != 0 {
		t.Fatalf("got %d targets, want 0 with no future data available", len(targets))
	}
}
