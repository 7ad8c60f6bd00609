// Package server implements a listener that decodes one record per connection.
//
// Processing pipeline:
//
//	Accept conn → go handleConn
//	  → read fixed-size chunks until EOF → Inbound
//	    → Middleware Chain → decodeHandler (bench.DecodeStage with the listener's codec)
//
// The codec is fixed per listener: a connection is decoded by the codec of the port it
// arrived on, never by anything in the payload.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"codecbench/bench"
	"codecbench/codec"
	"codecbench/message"
	"codecbench/metrics"
	"codecbench/middleware"
	"codecbench/registry"
	"codecbench/transport"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

type Server struct {
	codec       codec.Codec
	chunkSize   int
	logger      zerolog.Logger
	stateHook   StateHook
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(decodeHandler)))

	mu        sync.Mutex // guards listener, and orders wg.Add against Shutdown
	listener  net.Listener
	ready     chan struct{} // closed once listener is set or binding failed
	readyOnce sync.Once
	wg        sync.WaitGroup
	shutdown  atomic.Bool

	registry      registry.Registry // nil when not using discovery
	advertiseAddr string
	registryTTL   int64
}

// NewServer creates a listener that decodes with c.
func NewServer(c codec.Codec, opts ...Option) *Server {
	s := &Server{codec: c, ready: make(chan struct{})}
	defaultOptions(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use appends a middleware. It must be called before Serve.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Serve binds address and accepts until Shutdown. A bind failure is returned immediately.
func (s *Server) Serve(network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		s.markReady()
		return errors.Wrapf(err, "listen %s %s", network, address)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts on ln until Shutdown closes it.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server: already serving")
	}
	s.listener = ln
	s.mu.Unlock()
	s.markReady()

	// Build the chain once, not per connection.
	s.handler = middleware.Chain(s.middlewares...)(s.decodeHandler)

	if s.registry != nil {
		inst := registry.ServiceInstance{Addr: s.advertise(), Weight: 1}
		if err := s.registry.Register(s.codec.Name(), inst, s.registryTTL); err != nil {
			_ = ln.Close()
			return errors.Wrapf(err, "register %s at %s", s.codec.Name(), inst.Addr)
		}
	}

	s.logger.Info().
		Str("codec", s.codec.Name()).
		Str("addr", ln.Addr().String()).
		Int("chunk", s.chunkSize).
		Msg("listening")

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Keep accepting; back off so a persistent error does not spin.
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logger.Warn().Err(err).Dur("retry_in", tempDelay).Msg("accept failed")
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		s.mu.Lock()
		if s.shutdown.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) advertise() string {
	if s.advertiseAddr != "" {
		return s.advertiseAddr
	}
	return s.listener.Addr().String()
}

func (s *Server) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Addr blocks until the server is listening and returns the bound address.
// It returns nil when binding failed.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) transition(connID string, state ConnState, err error) {
	metrics.RecordConnectionState(s.codec.Name(), state.String())
	if s.stateHook != nil {
		s.stateHook(connID, state, err)
	}
}

// handleConn owns conn and its accumulation buffer for the connection's whole life.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	in := &message.Inbound{
		ConnID: ksuid.New().String(),
		Remote: conn.RemoteAddr().String(),
		Codec:  s.codec.Name(),
	}
	s.transition(in.ConnID, StateAccepted, nil)
	s.transition(in.ConnID, StateReading, nil)

	payload, err := transport.ReadAll(conn, s.chunkSize, func(n int) {
		metrics.RecordReceived(in.Codec, n)
	})
	if err != nil {
		s.logger.Warn().Err(err).EmbedObject(in).Msg("read aborted")
		s.transition(in.ConnID, StateAborted, err)
		return
	}
	in.Payload = payload
	in.Received = time.Now()
	s.transition(in.ConnID, StateEOFReached, nil)

	s.transition(in.ConnID, StateDecoding, nil)
	if err := s.handler(context.Background(), in); err != nil {
		s.logger.Debug().Err(err).EmbedObject(in).Msg("decode aborted")
		s.transition(in.ConnID, StateAborted, err)
		return
	}
	s.transition(in.ConnID, StateDone, nil)
}

// decodeHandler is the end of the chain: decode, read the name, report.
func (s *Server) decodeHandler(ctx context.Context, in *message.Inbound) error {
	_, m := bench.DecodeStage(s.codec, in.Payload)
	if m.Err != nil {
		return m.Err
	}
	in.Name = m.Sentinel
	in.DecodeDuration = m.DecodeDuration
	s.logger.Info().EmbedObject(in).Msg("decoded")
	return nil
}

// Shutdown performs graceful shutdown:
//  1. Deregister (producers stop picking this listener)
//  2. Set the shutdown flag so the Accept error is recognized as intentional
//  3. Close the listener
//  4. Wait for in-flight connections, up to timeout
//
// A peer that never closes its write side keeps its connection in flight.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if s.registry != nil && ln != nil {
		if err := s.registry.Deregister(s.codec.Name(), s.advertise()); err != nil {
			s.logger.Warn().Err(err).Msg("deregister failed")
		}
	}

	// No wg.Add can start once the flag is set under mu.
	s.mu.Lock()
	s.shutdown.Store(true)
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.Newf("server: %s connections still open after %s", s.codec.Name(), timeout)
	}
}
