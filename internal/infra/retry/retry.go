package retry

// Backoff policies and retry helpers
// Backoff computes the monitor loop delay after consecutive failed cycles
// Jitter spreads the regular polling interval around its nominal value
// Do retries retryable HTTP errors (429, 5xx) honoring Retry-After

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type HTTPError struct {
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error: <nil>"
	}
	if len(e.Body) == 0 {
		return fmt.Sprintf("http error (%d)", e.StatusCode)
	}
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("http error (%d): %s", e.StatusCode, string(body))
}

func IsRetryable(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	switch he.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	layouts := []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Until(t)
			if d < 0 {
				return 0
			}
			return d
		}
	}
	return 0
}

func clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// Backoff is an exponential delay policy: Base * Factor^attempt, capped at Max
// (Max <= 0 means uncapped), spread uniformly by ±Jitter of the value.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Jitter float64
	Max    time.Duration

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   3 * time.Second,
		Factor: 1.6,
		Jitter: 0.3,
		Max:    10 * time.Minute,
	}
}

// Nominal returns the delay for attempt without jitter.
func (b Backoff) Nominal(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if b.Base <= 0 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Base) * math.Pow(factor, float64(attempt))
	if math.IsInf(d, 0) || d > float64(math.MaxInt64) {
		if b.Max > 0 {
			return b.Max
		}
		return time.Duration(math.MaxInt64)
	}
	return clamp(time.Duration(d), b.Max)
}

// Delay returns the jittered delay for attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	return spread(b.Nominal(attempt), b.Jitter, b.Rand)
}

// Jitter returns d spread uniformly over [d*(1-fraction), d*(1+fraction)].
func Jitter(d time.Duration, fraction float64) time.Duration {
	return spread(d, fraction, nil)
}

func spread(d time.Duration, fraction float64, rnd func() float64) time.Duration {
	if d <= 0 || fraction <= 0 {
		return d
	}
	if fraction > 1 {
		fraction = 1
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	lo := float64(d) * (1 - fraction)
	hi := float64(d) * (1 + fraction)
	v := lo + rnd()*(hi-lo)
	if v >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn, retrying retryable errors up to opts.MaxRetries times.
func Do(ctx context.Context, opts Options, fn func() error) error {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 300 * time.Millisecond
	}
	policy := Backoff{Base: opts.BaseDelay, Factor: 2, Jitter: 0.5, Max: opts.MaxDelay}

	totalAttempts := 1 + opts.MaxRetries
	var lastErr error

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == totalAttempts-1 {
			return lastErr
		}

		sleep := policy.Delay(attempt)
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode == 429 && he.RetryAfter > 0 {
			sleep = clamp(he.RetryAfter, opts.MaxDelay)
		}

		if err := Sleep(ctx, sleep); err != nil {
			return lastErr
		}
	}

	return lastErr
}
