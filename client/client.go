// Package client ships encoded buffers to the listener registered for each codec.
//
//	Send(service) → Registry.Discover → Balancer.Pick → transport.Sender.Send
package client

import (
	"context"

	"codecbench/loadbalance"
	"codecbench/message"
	"codecbench/metrics"
	"codecbench/registry"
	"codecbench/transport"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Client struct {
	registry registry.Registry // find listener instances by codec name
	balancer loadbalance.Balancer
	sender   *transport.Sender
	logger   zerolog.Logger
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, sender *transport.Sender, logger zerolog.Logger) *Client {
	if sender == nil {
		sender = &transport.Sender{}
	}
	return &Client{
		registry: reg,
		balancer: bal,
		sender:   sender,
		logger:   logger,
	}
}

// Resolve picks the address of one listener for service.
func (c *Client) Resolve(service string) (string, error) {
	instances, err := c.registry.Discover(service)
	if err != nil {
		return "", errors.Wrapf(err, "discover %s", service)
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return "", errors.Wrapf(err, "pick %s", service)
	}
	return instance.Addr, nil
}

// Send ships payload on a fresh connection to a listener for service.
func (c *Client) Send(ctx context.Context, service string, payload []byte) error {
	addr, err := c.Resolve(service)
	if err == nil {
		err = c.sender.Send(ctx, addr, payload)
	}
	metrics.RecordSend(service, err)
	if err != nil {
		c.logger.Error().Err(err).Str("codec", service).Str("addr", addr).Msg("send failed")
		return err
	}
	c.logger.Info().Str("codec", service).Str("addr", addr).Int("bytes", len(payload)).Msg("sent")
	return nil
}

// SendAll ships every buffer concurrently on its own connection. A failure of one send
// does not cancel the others; errors are returned index-aligned with out.
func (c *Client) SendAll(ctx context.Context, out []message.Outbound) []error {
	errs := make([]error, len(out))
	var g errgroup.Group
	for i, o := range out {
		i, o := i, o
		g.Go(func() error {
			errs[i] = c.Send(ctx, o.Codec, o.Payload)
			return errs[i]
		})
	}
	_ = g.Wait()
	return errs
}
