package cmd

import (
	"os"

	"codecbench/bench"
	"codecbench/client"
	"codecbench/codec"
	"codecbench/loadbalance"
	"codecbench/registry"
	"codecbench/transport"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var clientCmd = &cobra.Command{
	Use:     "client",
	Aliases: []string{"c"},
	Short:   "Encode the record with both codecs and send each to its listener",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := readImage(cfg.ImagePath)
		if err != nil {
			return err
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if reg == nil {
			reg = registry.NewStaticRegistryFrom(map[string]string{
				codec.CodecTypeBinary.String(): cfg.BinaryAddr,
				codec.CodecTypeJSON.String():   cfg.TextAddr,
			})
		}
		defer reg.Close()

		host, _ := os.Hostname()
		bal, err := loadbalance.New(cfg.Balancer, host)
		if err != nil {
			return err
		}

		cli := client.NewClient(reg, bal, &transport.Sender{DialTimeout: cfg.DialTimeout}, logger)
		h := bench.NewHarness(cfg.BuildOptions(), logger)
		rep, err := h.Produce(cmd.Context(), image, cli.SendAll)
		if err != nil {
			return err
		}
		rep.Log(logger)
		if rep.Failed() {
			return errors.New("client: at least one send failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
}
