package modeladapter

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/modeladapter/usage"
)

var _ Responder = (*RetryingResponder)(nil)

// RetryingResponder wraps a Responder with proactive RPM throttling and
// reactive 429 retry with exponential backoff and jitter. Only opening a
// stream is retried; once a stream has been handed out its errors pass
// through untouched.
type RetryingResponder struct {
	inner           Responder
	mu              sync.Mutex
	window          []time.Time   // request timestamps inside the last minute
	rpm             int           // requests-per-minute limit (0 = no limit)
	maxRetries      int           // max retries on 429
	baseDelay       time.Duration // initial backoff delay
	fallbackTracker usage.Tracker // stable fallback tracker when inner lacks UsageReporter

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter. Defaults to rand.Float64.
	randFunc func() float64
}

// RetryOpts configures the RetryingResponder.
type RetryOpts struct {
	RPM        int           // Requests per minute (0 = no limit).
	MaxRetries int           // Max retries on 429 (default 3).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// NewRetryingResponder wraps a Responder with retry and throttling.
func NewRetryingResponder(inner Responder, opts RetryOpts) *RetryingResponder {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &RetryingResponder{
		inner:      inner,
		rpm:        opts.RPM,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		nowFunc:    time.Now,
		sleepFunc:  contextSleep,
		randFunc:   rand.Float64,
	}
}

// SetNowFunc overrides the time source (for testing).
func (r *RetryingResponder) SetNowFunc(fn func() time.Time) { r.nowFunc = fn }

// SetSleepFunc overrides the sleep function (for testing).
func (r *RetryingResponder) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (r *RetryingResponder) SetRandFunc(fn func() float64) { r.randFunc = fn }

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pruneWindow removes entries older than 1 minute. Must be called with mu held.
func (r *RetryingResponder) pruneWindow(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(r.window) && !r.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.window = append(r.window[:0:0], r.window[i:]...)
	}
}

// waitForCapacity blocks until the RPM window has room, then claims a slot.
func (r *RetryingResponder) waitForCapacity(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.nowFunc()
		r.pruneWindow(now)

		if r.rpm <= 0 || len(r.window) < r.rpm {
			r.window = append(r.window, now)
			r.mu.Unlock()
			return nil
		}

		// Wait for the oldest entry to expire.
		waitDur := max(r.window[0].Add(time.Minute).Sub(now), 0)
		r.mu.Unlock()

		const minWait = 10 * time.Millisecond
		if waitDur < minWait {
			waitDur = minWait
		}

		if err := r.sleepFunc(ctx, waitDur); err != nil {
			return ErrCanceled
		}
	}
}

// jitter applies ±25% random jitter to a duration.
func (r *RetryingResponder) jitter(d time.Duration) time.Duration {
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// do runs call with throttling and 429 retry.
func (r *RetryingResponder) do(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := range r.maxRetries + 1 {
		if err := r.waitForCapacity(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil {
			return nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return err
		}

		lastErr = err

		if attempt >= r.maxRetries {
			break
		}

		// baseDelay * 2^attempt, or RetryAfter if larger, with jitter.
		backoff := r.jitter(max(
			r.baseDelay*time.Duration(math.Pow(2, float64(attempt))), //nolint:mnd // exponential backoff formula
			rle.RetryAfter,
		))

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return ErrCanceled
		}
	}

	return lastErr
}

// Stream implements Responder.
func (r *RetryingResponder) Stream(ctx context.Context, req Request) (Stream, error) {
	var s Stream
	err := r.do(ctx, func() error {
		var e error
		s, e = r.inner.Stream(ctx, req)
		return e
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Generate implements Responder.
func (r *RetryingResponder) Generate(ctx context.Context, req Request) ([]content.Part, error) {
	var parts []content.Part
	err := r.do(ctx, func() error {
		var e error
		parts, e = r.inner.Generate(ctx, req)
		return e
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// UsageTracker forwards to the inner responder if it implements UsageReporter.
func (r *RetryingResponder) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}
	return &r.fallbackTracker
}
