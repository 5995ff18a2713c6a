package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents a single closed one-minute OHLCV bar for a symbol.
// OpenTime is the bucket start time (UTC, minute-aligned) and is the
// natural key within a symbol's collection. CloseTime is always
// OpenTime + 59_999ms; it is carried rather than recomputed so wire
// consumers don't need to know the bar width.
type Candle struct {
	Symbol    string          `json:"symbol" bson:"symbol"`
	OpenTime  time.Time       `json:"-" bson:"open_time"`
	CloseTime time.Time       `json:"-" bson:"close_time"`
	Open      decimal.Decimal `json:"open" bson:"open"`
	High      decimal.Decimal `json:"high" bson:"high"`
	Low       decimal.Decimal `json:"low" bson:"low"`
	Close     decimal.Decimal `json:"close" bson:"close"`
	Volume    decimal.Decimal `json:"volume" bson:"volume"`
	// Extra carries exchange fields this system doesn't interpret
	// (quote asset volume, trade count, taker-buy aggregates) so they
	// round-trip through storage and the API without the ingestor or
	// the wire format needing to know their meaning.
	Extra map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Key returns a unique key for this candle: "symbol:open_time".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.OpenTime.UTC().Format(time.RFC3339)
}

// candleWire is the JSON wire shape for Candle: every timestamp is
// milliseconds since epoch, matching the rest of the HTTP surface.
type candleWire struct {
	Symbol    string            `json:"symbol"`
	OpenTime  int64             `json:"open_time"`
	CloseTime int64             `json:"close_time"`
	Open      decimal.Decimal   `json:"open"`
	High      decimal.Decimal   `json:"high"`
	Low       decimal.Decimal   `json:"low"`
	Close     decimal.Decimal   `json:"close"`
	Volume    decimal.Decimal   `json:"volume"`
	Extra     map[string]string `json:"extra,omitempty"`
}

func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal(candleWire{
		Symbol:    c.Symbol,
		OpenTime:  c.OpenTime.UnixMilli(),
		CloseTime: c.CloseTime.UnixMilli(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Extra:     c.Extra,
	})
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var w candleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Symbol = w.Symbol
	c.OpenTime = time.UnixMilli(w.OpenTime).UTC()
	c.CloseTime = time.UnixMilli(w.CloseTime).UTC()
	c.Open, c.High, c.Low, c.Close, c.Volume = w.Open, w.High, w.Low, w.Close, w.Volume
	c.Extra = w.Extra
	return nil
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Valid reports whether the candle satisfies basic OHLC sanity: all
// fields non-negative, and low <= {open, close} <= high.
func (c *Candle) Valid() bool {
	zero := decimal.Zero
	if c.Open.LessThan(zero) || c.High.LessThan(zero) || c.Low.LessThan(zero) ||
		c.Close.LessThan(zero) || c.Volume.LessThan(zero) {
		return false
	}
	if c.Low.GreaterThan(c.Open) || c.Low.GreaterThan(c.Close) || c.Low.GreaterThan(c.High) {
		return false
	}
	if c.High.LessThan(c.Open) || c.High.LessThan(c.Close) {
		return false
	}
	return true
}

// Prediction is a forecast of a single future one-minute bar, produced by
// the predictor for a symbol/hour block at a given horizon offset.
type Prediction struct {
	Symbol      string          `json:"symbol" bson:"symbol"`
	OpenTime    time.Time       `json:"-" bson:"open_time"`
	CloseTime   time.Time       `json:"-" bson:"close_time"`
	Open        decimal.Decimal `json:"open" bson:"open"`
	High        decimal.Decimal `json:"high" bson:"high"`
	Low         decimal.Decimal `json:"low" bson:"low"`
	Close       decimal.Decimal `json:"close" bson:"close"`
	Volume      decimal.Decimal `json:"volume" bson:"volume"`
	HorizonMin  int             `json:"horizon_min" bson:"horizon_min"`
	GeneratedAt time.Time       `json:"-" bson:"generated_at"`
	ModelDate   string          `json:"model_date" bson:"model_date"` // YYYYMMDD tag of the model set used
}

// predictionWire is the JSON wire shape for Prediction: every timestamp
// is milliseconds since epoch.
type predictionWire struct {
	Symbol      string          `json:"symbol"`
	OpenTime    int64           `json:"open_time"`
	CloseTime   int64           `json:"close_time"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	HorizonMin  int             `json:"horizon_min"`
	GeneratedAt int64           `json:"generated_at"`
	ModelDate   string          `json:"model_date"`
}

func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(predictionWire{
		Symbol:      p.Symbol,
		OpenTime:    p.OpenTime.UnixMilli(),
		CloseTime:   p.CloseTime.UnixMilli(),
		Open:        p.Open,
		High:        p.High,
		Low:         p.Low,
		Close:       p.Close,
		Volume:      p.Volume,
		HorizonMin:  p.HorizonMin,
		GeneratedAt: p.GeneratedAt.UnixMilli(),
		ModelDate:   p.ModelDate,
	})
}

func (p *Prediction) UnmarshalJSON(data []byte) error {
	var w predictionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Symbol = w.Symbol
	p.OpenTime = time.UnixMilli(w.OpenTime).UTC()
	p.CloseTime = time.UnixMilli(w.CloseTime).UTC()
	p.Open, p.High, p.Low, p.Close, p.Volume = w.Open, w.High, w.Low, w.Close, w.Volume
	p.HorizonMin = w.HorizonMin
	p.GeneratedAt = time.UnixMilli(w.GeneratedAt).UTC()
	p.ModelDate = w.ModelDate
	return nil
}

// Stats is the summary payload returned by /api/stats/{symbol}.
type Stats struct {
	Symbol              string    `json:"symbol"`
	CandleCount         int64     `json:"candle_count"`
	FirstOpenTime       time.Time `json:"-"`
	LastOpenTime        time.Time `json:"-"`
	PredictionCount     int64     `json:"prediction_count"`
	LastPredictedHour   time.Time `json:"-"`
	HasPredictionsToday bool      `json:"has_predictions_today"`
}

// statsWire is the JSON wire shape for Stats: every timestamp is
// milliseconds since epoch, zero-valued times omitted as 0.
type statsWire struct {
	Symbol              string `json:"symbol"`
	CandleCount         int64  `json:"candle_count"`
	FirstOpenTime       int64  `json:"first_open_time,omitempty"`
	LastOpenTime        int64  `json:"last_open_time,omitempty"`
	PredictionCount     int64  `json:"prediction_count"`
	LastPredictedHour   int64  `json:"last_predicted_hour,omitempty"`
	HasPredictionsToday bool   `json:"has_predictions_today"`
}

func (s Stats) MarshalJSON() ([]byte, error) {
	w := statsWire{
		Symbol:              s.Symbol,
		CandleCount:         s.CandleCount,
		PredictionCount:     s.PredictionCount,
		HasPredictionsToday: s.HasPredictionsToday,
	}
	if !s.FirstOpenTime.IsZero() {
		w.FirstOpenTime = s.FirstOpenTime.UnixMilli()
	}
	if !s.LastOpenTime.IsZero() {
		w.LastOpenTime = s.LastOpenTime.UnixMilli()
	}
	if !s.LastPredictedHour.IsZero() {
		w.LastPredictedHour = s.LastPredictedHour.UnixMilli()
	}
	return json.Marshal(w)
}
