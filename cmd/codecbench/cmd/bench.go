package cmd

import (
	"codecbench/bench"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Encode and decode the record with both codecs in process",
	Long: `Build the record once, encode it with each codec, decode each codec's own output and
check the decoded values against the record. No network is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := readImage(cfg.ImagePath)
		if err != nil {
			return err
		}
		h := bench.NewHarness(cfg.BuildOptions(), logger)
		rep, err := h.Run(cmd.Context(), image)
		if err != nil {
			return err
		}
		rep.Log(logger)
		if rep.Failed() || rep.Mismatch {
			return errors.New("bench: at least one codec failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
}
