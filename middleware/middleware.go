// Package middleware wraps the per-message handler a listener runs once a connection
// reaches EOF.
package middleware

import (
	"context"

	"codecbench/message"
)

// HandlerFunc processes one complete inbound message. A returned error ends that
// connection's processing only.
type HandlerFunc func(ctx context.Context, in *message.Inbound) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
