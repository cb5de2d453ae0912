// Package ratelimit throttles calls to rate-limited upstream APIs.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fd1az/craftcalc/internal/apperror"
)

// Limiter is a token bucket sized in requests per minute.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute with a burst of a tenth
// of that, at least one. A non-positive rate disables limiting.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := max(requestsPerMinute/10, 1)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// Wait blocks until a token is available. Context cancellation is returned
// as is; a deadline too short to ever get a token is CodeRateLimitExceeded.
func (l *Limiter) Wait(ctx context.Context) error {
	err := l.limiter.Wait(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
}

// Allow reports whether a request may go out now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate changes the per-minute rate in place.
func (l *Limiter) SetRate(requestsPerMinute int) {
	if requestsPerMinute <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(float64(requestsPerMinute) / 60.0))
	l.limiter.SetBurst(max(requestsPerMinute/10, 1))
}
