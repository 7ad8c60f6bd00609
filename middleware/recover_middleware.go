package middleware

import (
	"context"
	"fmt"

	"codecbench/message"

	"github.com/cockroachdb/errors"
)

// RecoverMiddleware turns a panic in the handler into an error for that message.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, in *message.Inbound) (err error) {
			defer func() {
				if e := recover(); e != nil {
					switch e := e.(type) {
					case error:
						err = errors.Wrapf(e, "handler panic on conn %s", in.ConnID)
					default:
						err = errors.Newf("handler panic on conn %s: %s", in.ConnID, fmt.Sprint(e))
					}
				}
			}()
			return next(ctx, in)
		}
	}
}
