// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	datastoreEngineFlag = "datastore-engine"
	datastoreEngineConf = "datastore.engine"
	datastoreURIFlag    = "datastore-uri"
	datastoreURIConf    = "datastore.uri"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with VECINOTECH, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("VECINOTECH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/vecinotech", "$HOME/.vecinotech", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetDefault(datastoreEngineFlag, "")
	viper.SetDefault(datastoreURIFlag, "")
	err := viper.ReadInConfig()
	if err == nil {
		viper.SetDefault(datastoreEngineFlag, viper.Get(datastoreEngineConf))
		viper.SetDefault(datastoreURIFlag, viper.Get(datastoreURIConf))
	}

	return &cobra.Command{
		Use:   "vecinotech",
		Short: "Neighbourhood help request coordination service",
		Long: `Neighbourhood help request coordination service.

Neighbours in need post help requests, nearby volunteers find and claim them, and both sides
chat, call and rate each other once the request is done.`,
		SilenceUsage: true,
	}
}
