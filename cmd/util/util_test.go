package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestMustBindPFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	MustBindPFlag("log.level", flags.Lookup("log-level"))
	require.Equal(t, "info", viper.GetString("log.level"))

	require.NoError(t, flags.Set("log-level", "debug"))
	require.Equal(t, "debug", viper.GetString("log.level"))

	require.Panics(t, func() { MustBindPFlag("missing", nil) })
}

func TestMustBindEnv(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("VECINOTECH_LOG_LEVEL", "warn")
	MustBindEnv("log.level", "VECINOTECH_LOG_LEVEL")
	require.Equal(t, "warn", viper.GetString("log.level"))

	require.Panics(t, func() { MustBindEnv() })
}

func TestPrepareTempConfigFile(t *testing.T) {
	PrepareTempConfigFile(t, "log:\n  level: debug\n")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	contents, err := os.ReadFile(filepath.Join(home, ".vecinotech", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "log:\n  level: debug\n", string(contents))
}
