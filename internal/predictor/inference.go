package predictor

import (
	"time"

	"github.com/shopspring/decimal"

	"candlesystem/internal/model"
)

// InferHourBlock produces the 60 one-minute predicted candles for the
// UTC hour starting at hourStart. window is the trailing real-candle
// window ending at the minute immediately before hourStart; prevClose is
// that minute's close. The continuity invariant holds by construction:
// minute offset 0 opens at the real prevClose, every later minute opens
// at the previous minute's predicted close.
func InferHourBlock(symbol string, hourStart time.Time, window []model.Candle, prevClose float64, set *ModelSet) []model.Prediction {
	if len(window) == 0 {
		return nil
	}

	rows := BuildFeatures(window)
	lastRow := rows[len(rows)-1]
	now := time.Now().UTC()

	preds := make([]model.Prediction, 0, 60)
	prev := prevClose
	for k := 0; k < 60; k++ {
		h, ok := HorizonFor(k)
		if !ok {
			continue
		}
		m := set.Models[h.Minutes]
		scaler := set.Scalers[h.Minutes]
		if m == nil {
			continue
		}

		t := m.Predict(scaler.Transform(lastRow))

		open := prev
		close := prev + t.CloseDelta
		high := prev + t.HighDelta
		if open > high {
			high = open
		}
		if close > high {
			high = close
		}
		low := prev + t.LowDelta
		if open < low {
			low = open
		}
		if close < low {
			low = close
		}
		volume := t.Volume
		if volume < 0 {
			volume = 0
		}

		openTime := hourStart.Add(time.Duration(k) * time.Minute)
		preds = append(preds, model.Prediction{
			Symbol:      symbol,
			OpenTime:    openTime,
			CloseTime:   openTime.Add(59_999 * time.Millisecond),
			Open:        decimal.NewFromFloat(open),
			High:        decimal.NewFromFloat(high),
			Low:         decimal.NewFromFloat(low),
			Close:       decimal.NewFromFloat(close),
			Volume:      decimal.NewFromFloat(volume),
			HorizonMin:  h.Minutes,
			GeneratedAt: now,
			ModelDate:   set.DateTag,
		})
		prev = close
	}
	return preds
}
