package server

import (
	"codecbench/middleware"
	"codecbench/registry"
	"codecbench/transport"

	"github.com/rs/zerolog"
)

type Option func(*Server)

// WithChunkSize sets the per-read buffer size; non-positive values keep the default.
func WithChunkSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithStateHook(hook StateHook) Option {
	return func(s *Server) {
		s.stateHook = hook
	}
}

// WithMiddleware appends to the handler chain; the first middleware runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

// WithRegistry registers advertiseAddr under the codec name once serving starts,
// and deregisters it on Shutdown.
func WithRegistry(reg registry.Registry, advertiseAddr string, ttl int64) Option {
	return func(s *Server) {
		s.registry = reg
		s.advertiseAddr = advertiseAddr
		s.registryTTL = ttl
	}
}

func defaultOptions(s *Server) {
	s.chunkSize = transport.DefaultChunkSize
	s.logger = zerolog.Nop()
	s.registryTTL = 10
}
