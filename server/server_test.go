package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"codecbench/codec"
	"codecbench/message"
	"codecbench/middleware"
	"codecbench/record"
	"codecbench/registry"
	"codecbench/transport"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// recorder collects per-connection state sequences and decoded names.
type recorder struct {
	mu     sync.Mutex
	states map[string][]ConnState
	errs   map[string]error
	names  map[string]string
	done   chan string
}

func newRecorder() *recorder {
	return &recorder{
		states: make(map[string][]ConnState),
		errs:   make(map[string]error),
		names:  make(map[string]string),
		done:   make(chan string, 128),
	}
}

func (r *recorder) hook(connID string, state ConnState, err error) {
	r.mu.Lock()
	r.states[connID] = append(r.states[connID], state)
	if err != nil {
		r.errs[connID] = err
	}
	r.mu.Unlock()
	if state.Terminal() {
		select {
		case r.done <- connID:
		default:
		}
	}
}

func (r *recorder) capture() middleware.Middleware {
	return func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, in *message.Inbound) error {
			err := next(ctx, in)
			r.mu.Lock()
			r.names[in.ConnID] = in.Name
			r.mu.Unlock()
			return err
		}
	}
}

func (r *recorder) wait(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	timeout := time.After(5 * time.Second)
	for len(ids) < n {
		select {
		case id := <-r.done:
			ids = append(ids, id)
		case <-timeout:
			t.Fatalf("only %d of %d connections finished", len(ids), n)
		}
	}
	return ids
}

func startServer(t *testing.T, c codec.Codec, rec *recorder, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts = append(opts, WithStateHook(rec.hook), WithMiddleware(rec.capture()))
	svr := NewServer(c, opts...)
	served := make(chan error, 1)
	go func() { served <- svr.ServeListener(ln) }()
	svr.Addr()

	t.Cleanup(func() {
		require.NoError(t, svr.Shutdown(3*time.Second))
		require.NoError(t, <-served)
	})
	return svr
}

func encode(t *testing.T, c codec.Codec) []byte {
	t.Helper()
	r, err := record.Build(record.DefaultBuildOptions(), []byte("not really a jpeg"))
	require.NoError(t, err)
	data, err := c.Encode(r)
	require.NoError(t, err)
	return data
}

func TestServeDecodesEachCodec(t *testing.T) {
	for _, c := range codec.All() {
		t.Run(c.Name(), func(t *testing.T) {
			rec := newRecorder()
			svr := startServer(t, c, rec, WithChunkSize(64))

			require.NoError(t, transport.Send(context.Background(), svr.Addr().String(), encode(t, c)))

			id := rec.wait(t, 1)[0]
			rec.mu.Lock()
			defer rec.mu.Unlock()
			require.Equal(t, []ConnState{StateAccepted, StateReading, StateEOFReached, StateDecoding, StateDone}, rec.states[id])
			require.Equal(t, "Minka", rec.names[id])
		})
	}
}

func TestDecodeFailureAborts(t *testing.T) {
	rec := newRecorder()
	svr := startServer(t, &codec.BinaryCodec{}, rec)

	// text payload on the binary port
	require.NoError(t, transport.Send(context.Background(), svr.Addr().String(), encode(t, &codec.JSONCodec{})))

	id := rec.wait(t, 1)[0]
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []ConnState{StateAccepted, StateReading, StateEOFReached, StateDecoding, StateAborted}, rec.states[id])
	require.True(t, errors.Is(rec.errs[id], codec.ErrCorruptMessage), "%v", rec.errs[id])
	require.Empty(t, rec.names[id])
}

func TestEmptyPayload(t *testing.T) {
	rec := newRecorder()
	svr := startServer(t, &codec.JSONCodec{}, rec)

	require.NoError(t, transport.Send(context.Background(), svr.Addr().String(), nil))

	id := rec.wait(t, 1)[0]
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.True(t, errors.Is(rec.errs[id], codec.ErrMalformedText), "%v", rec.errs[id])
}

func TestConcurrentConnectionsAreIsolated(t *testing.T) {
	const n = 24
	rec := newRecorder()
	svr := startServer(t, &codec.BinaryCodec{}, rec, WithChunkSize(16))
	addr := svr.Addr().String()
	good := encode(t, &codec.BinaryCodec{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		payload := good
		if i == n/2 {
			payload = good[:len(good)/2]
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := transport.Send(context.Background(), addr, payload); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	ids := rec.wait(t, n)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var done, aborted int
	for _, id := range ids {
		states := rec.states[id]
		switch states[len(states)-1] {
		case StateDone:
			done++
			require.Equal(t, "Minka", rec.names[id])
		case StateAborted:
			aborted++
			require.True(t, errors.Is(rec.errs[id], codec.ErrCorruptMessage), "%v", rec.errs[id])
		}
	}
	require.Equal(t, n-1, done)
	require.Equal(t, 1, aborted)
}

func TestRegistryLifecycle(t *testing.T) {
	reg := registry.NewStaticRegistry()
	rec := newRecorder()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svr := NewServer(&codec.JSONCodec{}, WithRegistry(reg, "", 5), WithStateHook(rec.hook))
	served := make(chan error, 1)
	go func() { served <- svr.ServeListener(ln) }()

	require.Eventually(t, func() bool {
		insts, _ := reg.Discover("json")
		return len(insts) == 1 && insts[0].Addr == ln.Addr().String()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, svr.Shutdown(time.Second))
	require.NoError(t, <-served)

	insts, _ := reg.Discover("json")
	require.Empty(t, insts)
}

func TestServeBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	svr := NewServer(&codec.BinaryCodec{})
	err = svr.Serve("tcp", ln.Addr().String())
	require.Error(t, err)

	addr := make(chan net.Addr, 1)
	go func() { addr <- svr.Addr() }()
	select {
	case a := <-addr:
		require.Nil(t, a)
	case <-time.After(time.Second):
		t.Fatal("Addr blocked after bind failure")
	}
}

func TestShutdownDuringConnectionBurst(t *testing.T) {
	rec := newRecorder()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	svr := NewServer(&codec.JSONCodec{}, WithStateHook(rec.hook))
	served := make(chan error, 1)
	go func() { served <- svr.ServeListener(ln) }()
	addr := svr.Addr().String()
	payload := encode(t, &codec.JSONCodec{})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// dials fail once the listener is closed
				_ = transport.Send(context.Background(), addr, payload)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, svr.Shutdown(3*time.Second))
	require.NoError(t, <-served)
	close(stop)
	wg.Wait()

	// every connection the server took on reached a terminal state before Shutdown returned
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.states)
	for id, states := range rec.states {
		require.True(t, states[len(states)-1].Terminal(), "conn %s ended in %s", id, states[len(states)-1])
	}
}

func TestShutdownTimesOutOnStalledPeer(t *testing.T) {
	rec := newRecorder()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	svr := NewServer(&codec.BinaryCodec{}, WithStateHook(rec.hook))
	go svr.ServeListener(ln)

	conn, err := net.Dial("tcp", svr.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	// the peer never half-closes, so the connection stays in Reading
	time.Sleep(50 * time.Millisecond)
	require.Error(t, svr.Shutdown(100*time.Millisecond))

	require.NoError(t, conn.Close())
	rec.wait(t, 1)
}
