// Package exchange fetches minute klines from the upstream public REST
// API and classifies failures as retryable or not.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"candlesystem/internal/errs"
	"candlesystem/internal/model"
	"candlesystem/internal/resilience"
)

const maxCandlesPerRequest = 1000

// Config configures the exchange REST client.
type Config struct {
	BaseURL string        // e.g. "https://api.binance.com"
	Timeout time.Duration // default 7s
}

// Client is a minimal HTTP client against the upstream klines endpoint.
// Breaker trips after a run of consecutive transport failures so a
// struggling upstream stops absorbing a full retry budget on every
// tick; it resets automatically once Breaker's probe call succeeds.
type Client struct {
	baseURL    string
	httpClient *http.Client
	Logger     zerolog.Logger
	Breaker    *resilience.CircuitBreaker
}

// New builds a Client with sane defaults and a no-op logger.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 7 * time.Second
	}
	breaker := resilience.NewCircuitBreaker(5, 30*time.Second)
	breaker.ShouldTrip = isTransportFailure
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		Logger:     zerolog.Nop(),
		Breaker:    breaker,
	}
}

// isTransportFailure reports whether err indicates the upstream itself is
// unhealthy (network failure, 5xx, rate limiting) rather than a
// request-specific problem (bad symbol, malformed response) that says
// nothing about whether other symbols sharing this Client can still be
// served. Only the former should count toward tripping the breaker --
// one delisted symbol returning 400 on every tick shouldn't stop every
// other symbol's fetch from going out.
func isTransportFailure(err error) bool {
	return errs.Is(err, errs.KindUpstreamTransient)
}

// NewWithLogger builds a Client that logs request-level detail through logger.
func NewWithLogger(cfg Config, logger zerolog.Logger) *Client {
	c := New(cfg)
	c.Logger = logger
	return c
}

// MaxCandlesPerRequest is the upstream's per-request window cap.
func (c *Client) MaxCandlesPerRequest() int { return maxCandlesPerRequest }

// rawKline mirrors the upstream's positional array response for one bar.
type rawKline [12]json.RawMessage

// FetchKlines fetches up to `limit` one-minute candles for symbol with
// open_time >= startMs, ascending. Classifies the resulting error via
// errs.Kind so the retry loop and the ingestor's logging can dispatch on
// it without string matching.
func (c *Client) FetchKlines(ctx context.Context, symbol string, startMs int64, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > maxCandlesPerRequest {
		limit = maxCandlesPerRequest
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1m")
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("limit", strconv.Itoa(limit))

	reqURL := c.baseURL + "/api/v3/klines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errs.New(errs.KindFatal, fmt.Errorf("build request: %w", err))
	}

	c.Logger.Debug().Str("symbol", symbol).Int64("start_ms", startMs).Int("limit", limit).Msg("fetching klines")

	var raw []rawKline
	var rateLimited *errs.RetryAfterError
	breakerErr := c.Breaker.Execute(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.Logger.Error().Err(err).Str("symbol", symbol).Msg("klines request failed")
			return errs.New(errs.KindUpstreamTransient, fmt.Errorf("klines request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = &errs.RetryAfterError{
				Err:        errs.New(errs.KindUpstreamTransient, fmt.Errorf("rate limited (status %d)", resp.StatusCode)),
				RetryAfter: retryAfterSeconds(resp.Header.Get("Retry-After")),
			}
			return rateLimited
		}
		if resp.StatusCode >= 500 {
			return errs.New(errs.KindUpstreamTransient, fmt.Errorf("upstream error status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return &errs.NotRetryableError{
				Err: errs.New(errs.KindUpstreamProtocol, fmt.Errorf("client error status %d", resp.StatusCode)),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return &errs.NotRetryableError{
				Err: errs.New(errs.KindUpstreamProtocol, fmt.Errorf("decode klines response: %w", err)),
			}
		}
		return nil
	})
	if rateLimited != nil {
		return nil, rateLimited
	}
	if breakerErr == resilience.ErrCircuitOpen {
		return nil, errs.New(errs.KindUpstreamTransient, fmt.Errorf("klines request: %w", breakerErr))
	}
	if breakerErr != nil {
		return nil, breakerErr
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, k)
		if err != nil {
			return nil, &errs.NotRetryableError{
				Err: errs.New(errs.KindUpstreamProtocol, fmt.Errorf("parse kline: %w", err)),
			}
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(symbol string, k rawKline) (model.Candle, error) {
	var openMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return model.Candle{}, err
	}

	parse := func(i int) (decimal.Decimal, error) {
		var s string
		if err := json.Unmarshal(k[i], &s); err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}

	open, err := parse(1)
	if err != nil {
		return model.Candle{}, err
	}
	high, err := parse(2)
	if err != nil {
		return model.Candle{}, err
	}
	low, err := parse(3)
	if err != nil {
		return model.Candle{}, err
	}
	closePrice, err := parse(4)
	if err != nil {
		return model.Candle{}, err
	}
	volume, err := parse(5)
	if err != nil {
		return model.Candle{}, err
	}

	openTime := time.UnixMilli(openMs).UTC()
	return model.Candle{
		Symbol:    symbol,
		OpenTime:  openTime,
		CloseTime: openTime.Add(59_999 * time.Millisecond),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Extra:     extraFields(k),
	}, nil
}

// extraFields carries the upstream's auxiliary per-bar fields (quote
// asset volume, trade count, taker-buy aggregates) through to storage
// and the API without this system needing to interpret them. Each raw
// value may be encoded as a JSON string or a JSON number depending on
// the field, so it's read generically and re-stringified.
func extraFields(k rawKline) map[string]string {
	extra := make(map[string]string, 4)
	fields := [...]struct {
		key string
		idx int
	}{
		{"quote_volume", 7},
		{"trade_count", 8},
		{"taker_buy_base", 9},
		{"taker_buy_quote", 10},
	}
	for _, f := range fields {
		if s, ok := rawScalarString(k[f.idx]); ok {
			extra[f.key] = s
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// rawScalarString extracts a JSON string or number field as a string,
// regardless of which encoding the upstream used for it.
func rawScalarString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func retryAfterSeconds(header string) int {
	if header == "" {
		return 0
	}
	n, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return n
}
