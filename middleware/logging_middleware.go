package middleware

import (
	"context"
	"time"

	"codecbench/message"

	"github.com/rs/zerolog"
)

// LoggingMiddleware logs every handled message at debug level and failures at warn.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, in *message.Inbound) error {
			start := time.Now()
			err := next(ctx, in)
			elapsed := time.Since(start)
			if err != nil {
				logger.Warn().Err(err).EmbedObject(in).Dur("elapsed", elapsed).Msg("message rejected")
				return err
			}
			logger.Debug().EmbedObject(in).Dur("elapsed", elapsed).Msg("message handled")
			return nil
		}
	}
}
