package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codecbench/codec"
	"codecbench/config"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestListenRequiresImage(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	cfg = config.Default()
	cfg.ImagePath = filepath.Join(t.TempDir(), "missing.jpg")
	// the port is never bound when the image check fails
	cfg.BinaryAddr = "127.0.0.1:0"

	err := listen(context.Background(), codec.GetCodec(codec.CodecTypeBinary))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist), "%v", err)
}

func TestEveryModeRejectsMissingImage(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.jpg")
	for _, mode := range []string{"bench", "client", "listen-binary", "listen-text", "listen-all"} {
		t.Run(mode, func(t *testing.T) {
			rootCmd.SetArgs([]string{mode, "--image", missing, "--log-level", "error"})
			rootCmd.SilenceErrors = true
			err := rootCmd.Execute()
			require.True(t, errors.Is(err, os.ErrNotExist), "%v", err)
		})
	}
}
