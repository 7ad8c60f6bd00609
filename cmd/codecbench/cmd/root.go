package cmd

import (
	"os"

	"codecbench/config"
	"codecbench/logging"
	"codecbench/registry"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Populated by PersistentPreRunE before any subcommand runs.
var (
	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codecbench",
	Short: "Compare a schema-based binary codec with JSON",
	Long: `codecbench encodes one cat record with a schema-based binary codec and with JSON,
then decodes it locally or ships it over TCP to a listener per codec.

Run the listeners first, then the client:
  codecbench listen-all
  codecbench client --image ./minka.jpg`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("image") {
			loaded.ImagePath, _ = cmd.Flags().GetString("image")
		}
		if cmd.Flags().Changed("addresses") {
			loaded.AddressCount, _ = cmd.Flags().GetInt("addresses")
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		l, err := logging.Init("codecbench", loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
}

// Execute runs the selected subcommand and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().StringP("image", "i", "./minka.jpg", "Image file attached to the record")
	rootCmd.PersistentFlags().IntP("addresses", "n", 10, "Number of addresses in the record")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func readImage(path string) ([]byte, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	return img, nil
}

// openRegistry returns an etcd registry when endpoints are configured. Otherwise it returns
// nil, and callers fall back to the configured listener addresses.
func openRegistry() (registry.Registry, error) {
	if len(cfg.EtcdEndpoints) == 0 {
		return nil, nil
	}
	reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.DialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect etcd")
	}
	return reg, nil
}
