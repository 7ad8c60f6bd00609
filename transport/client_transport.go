// Package transport moves one encoded buffer per TCP connection.
//
// There is no framing. The sender writes the whole buffer and half-closes its write side;
// the receiver accumulates everything up to EOF. Connection closure is the message boundary:
//
//	sender:   dial ──write(buf)──CloseWrite──close
//	receiver: accept ──read(chunk)…read(chunk)──EOF──payload
package transport

import (
	"context"
	"net"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrIOFailure = errors.New("transport: i/o failure")

const DefaultDialTimeout = 5 * time.Second

// Sender ships buffers to listeners. The zero value uses DefaultDialTimeout.
type Sender struct {
	DialTimeout time.Duration
}

// Send dials addr, writes all of payload, half-closes the write side and closes.
// Cancelling ctx aborts a dial or write in progress.
func (s *Sender) Send(ctx context.Context, addr string, payload []byte) error {
	timeout := s.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(ErrIOFailure, "dial %s: %v", addr, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := writeAll(conn, payload); err != nil {
		_ = conn.Close()
		return errors.Wrapf(ErrIOFailure, "write %d bytes to %s: %v", len(payload), addr, err)
	}
	if err := closeWrite(conn); err != nil {
		_ = conn.Close()
		return errors.Wrapf(ErrIOFailure, "half-close %s: %v", addr, err)
	}
	if err := conn.Close(); err != nil {
		return errors.Wrapf(ErrIOFailure, "close %s: %v", addr, err)
	}
	return nil
}

// Send uses a zero Sender.
func Send(ctx context.Context, addr string, payload []byte) error {
	var s Sender
	return s.Send(ctx, addr, payload)
}

func writeAll(conn net.Conn, p []byte) error {
	for len(p) > 0 {
		n, err := conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func closeWrite(conn net.Conn) error {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
