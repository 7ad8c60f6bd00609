package middleware

import (
	"context"

	"codecbench/message"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware admits messages through a token bucket of r per second with the
// given burst. A non-positive r disables limiting.
func RateLimitMiddleware(r float64, burst int) Middleware {
	if r <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, in *message.Inbound) error {
			if !limiter.Allow() {
				return errors.Wrapf(ErrRateLimited, "conn %s", in.ConnID)
			}
			return next(ctx, in)
		}
	}
}
