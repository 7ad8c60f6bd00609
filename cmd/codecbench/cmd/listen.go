package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"codecbench/codec"
	"codecbench/metrics"
	"codecbench/middleware"
	"codecbench/registry"
	"codecbench/server"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var listenBinaryCmd = &cobra.Command{
	Use:     "listen-binary",
	Aliases: []string{"sc"},
	Short:   "Accept binary-encoded records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listen(cmd.Context(), codec.GetCodec(codec.CodecTypeBinary))
	},
}

var listenTextCmd = &cobra.Command{
	Use:     "listen-text",
	Aliases: []string{"sj"},
	Short:   "Accept JSON-encoded records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listen(cmd.Context(), codec.GetCodec(codec.CodecTypeJSON))
	},
}

var listenAllCmd = &cobra.Command{
	Use:   "listen-all",
	Short: "Run the binary and JSON listeners in one process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listen(cmd.Context(), codec.All()...)
	},
}

func init() {
	rootCmd.AddCommand(listenBinaryCmd, listenTextCmd, listenAllCmd)
}

// listen serves one listener per codec until SIGINT or SIGTERM, then shuts them down.
// A missing image file or a bind failure on any listener is returned.
func listen(parent context.Context, codecs ...codec.Codec) error {
	if parent == nil {
		parent = context.Background()
	}
	// Every mode requires the attachment, listeners included.
	if _, err := readImage(cfg.ImagePath); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := openRegistry()
	if err != nil {
		return err
	}
	if reg != nil {
		defer reg.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(ctx, cfg.MetricsAddr, logger)
	})

	for _, c := range codecs {
		c := c
		svr := newServer(c, reg)
		addr := cfg.ListenAddr(c.Name())
		g.Go(func() error {
			if err := svr.Serve("tcp", addr); err != nil {
				return errors.Wrapf(err, "%s listener", c.Name())
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return svr.Shutdown(cfg.ShutdownTimeout)
		})
	}

	err = g.Wait()
	logger.Info().Msg("listeners stopped")
	return err
}

func newServer(c codec.Codec, reg registry.Registry) *server.Server {
	opts := []server.Option{
		server.WithLogger(logger.With().Str("codec", c.Name()).Logger()),
		server.WithChunkSize(cfg.ReadChunkSize),
		server.WithMiddleware(
			middleware.RecoverMiddleware(),
			middleware.LoggingMiddleware(logger),
			middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst),
		),
	}
	if reg != nil {
		opts = append(opts, server.WithRegistry(reg, cfg.Advertise(c.Name()), cfg.RegistryTTL))
	}
	return server.NewServer(c, opts...)
}
