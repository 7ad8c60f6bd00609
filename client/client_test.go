package client

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"codecbench/bench"
	"codecbench/codec"
	"codecbench/loadbalance"
	"codecbench/message"
	"codecbench/middleware"
	"codecbench/record"
	"codecbench/registry"
	"codecbench/server"
	"codecbench/transport"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// sink accepts connections and records each payload.
func sink(t *testing.T) (string, <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan []byte, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				b, err := transport.ReadAll(conn, 0, nil)
				if err == nil {
					out <- b
				}
			}()
		}
	}()
	return ln.Addr().String(), out
}

func TestSendResolvesByCodecName(t *testing.T) {
	binAddr, binGot := sink(t)
	txtAddr, txtGot := sink(t)
	reg := registry.NewStaticRegistryFrom(map[string]string{"binary": binAddr, "json": txtAddr})
	cli := NewClient(reg, &loadbalance.RoundRobinBalancer{}, nil, zerolog.Nop())

	require.NoError(t, cli.Send(context.Background(), "binary", []byte("B")))
	require.NoError(t, cli.Send(context.Background(), "json", []byte("J")))

	require.Equal(t, []byte("B"), <-binGot)
	require.Equal(t, []byte("J"), <-txtGot)
}

func TestSendNoInstances(t *testing.T) {
	cli := NewClient(registry.NewStaticRegistry(), &loadbalance.RoundRobinBalancer{}, nil, zerolog.Nop())
	err := cli.Send(context.Background(), "binary", []byte("x"))
	require.True(t, errors.Is(err, registry.ErrNoInstances), "%v", err)
}

func TestSendAllIsolatesFailures(t *testing.T) {
	binAddr, binGot := sink(t)

	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	require.NoError(t, dead.Close())

	reg := registry.NewStaticRegistryFrom(map[string]string{"binary": binAddr, "json": deadAddr})
	cli := NewClient(reg, &loadbalance.RoundRobinBalancer{}, &transport.Sender{DialTimeout: time.Second}, zerolog.Nop())

	errs := cli.SendAll(context.Background(), []message.Outbound{
		{Codec: "json", Payload: []byte("{}")},
		{Codec: "binary", Payload: bytes.Repeat([]byte{7}, 5000)},
	})
	require.Len(t, errs, 2)
	require.True(t, errors.Is(errs[0], transport.ErrIOFailure), "%v", errs[0])
	require.NoError(t, errs[1])
	require.Len(t, <-binGot, 5000)
}

// TestEndToEnd runs the distributed mode in one process:
// harness.Produce → Client.SendAll → both listeners decode.
func TestEndToEnd(t *testing.T) {
	reg := registry.NewStaticRegistry()

	var mu sync.Mutex
	decoded := map[string]string{}
	got := make(chan struct{}, 2)
	capture := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, in *message.Inbound) error {
			err := next(ctx, in)
			mu.Lock()
			decoded[in.Codec] = in.Name
			mu.Unlock()
			got <- struct{}{}
			return err
		}
	}

	for _, c := range codec.All() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		svr := server.NewServer(c,
			server.WithRegistry(reg, "", 10),
			server.WithMiddleware(middleware.LoggingMiddleware(zerolog.Nop()), capture),
		)
		go svr.ServeListener(ln)
		svr.Addr()
		t.Cleanup(func() { svr.Shutdown(3 * time.Second) })
	}
	require.Eventually(t, func() bool {
		b, _ := reg.Discover("binary")
		j, _ := reg.Discover("json")
		return len(b) == 1 && len(j) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cli := NewClient(reg, &loadbalance.WeightedRandomBalancer{}, nil, zerolog.Nop())
	h := bench.NewHarness(record.DefaultBuildOptions(), zerolog.Nop())
	rep, err := h.Produce(context.Background(), bytes.Repeat([]byte{0xAA}, 4096), cli.SendAll)
	require.NoError(t, err)
	require.False(t, rep.Failed())

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("listener did not decode")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, map[string]string{"binary": "Minka", "json": "Minka"}, decoded)
}
