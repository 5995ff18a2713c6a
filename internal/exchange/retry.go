package exchange

import (
	"context"
	"errors"
	"math"
	"time"

	"candlesystem/internal/errs"
	"candlesystem/internal/model"
)

// RetryStrategy controls how many times a fetch is retried and how the
// sleep between attempts grows.
type RetryStrategy struct {
	Attempts            int
	FirstSleepTime      time.Duration
	SleepTimeMultiplier float64
}

// DefaultRetryStrategy mirrors a conservative default: a handful of
// attempts with short exponential backoff, tuned per exchange in
// production but not modeled further here.
var DefaultRetryStrategy = RetryStrategy{
	Attempts:            3,
	FirstSleepTime:      1 * time.Second,
	SleepTimeMultiplier: 2.0,
}

func withDefaults(s RetryStrategy) RetryStrategy {
	if s.Attempts == 0 {
		s.Attempts = DefaultRetryStrategy.Attempts
	}
	if s.FirstSleepTime == 0 {
		s.FirstSleepTime = DefaultRetryStrategy.FirstSleepTime
	}
	if s.SleepTimeMultiplier == 0 {
		s.SleepTimeMultiplier = DefaultRetryStrategy.SleepTimeMultiplier
	}
	return s
}

// FetchKlinesWithRetry wraps Client.FetchKlines with bounded exponential
// backoff. A NotRetryableError aborts immediately; a RetryAfterError
// honors the server's hinted delay for the next sleep.
func FetchKlinesWithRetry(ctx context.Context, client *Client, strategy RetryStrategy, symbol string, startMs int64, limit int) ([]model.Candle, error) {
	strategy = withDefaults(strategy)
	sleepTime := strategy.FirstSleepTime
	attempts := strategy.Attempts

	var lastErr error
	for attempts > 0 {
		candles, err := client.FetchKlines(ctx, symbol, startMs, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err

		var notRetryable *errs.NotRetryableError
		if errors.As(err, &notRetryable) {
			break
		}

		var retryAfter *errs.RetryAfterError
		if errors.As(err, &retryAfter) && retryAfter.RetryAfter > 0 {
			sleepTime = time.Duration(retryAfter.RetryAfter) * time.Second
		}

		attempts--
		if attempts == 0 {
			break
		}

		client.Logger.Warn().Err(err).Str("symbol", symbol).
			Int("attempts_left", attempts).Dur("sleep", sleepTime).
			Msg("klines fetch failed, retrying")

		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		sleepTime = time.Duration(math.Round(float64(sleepTime) * strategy.SleepTimeMultiplier))
	}
	return nil, lastErr
}
