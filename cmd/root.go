// Package cmd defines and implements the CLI commands for the docscribe
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docscribe/docscribe/internal/logging"
	"github.com/docscribe/docscribe/pkg/config"
)

var (
	cfgFile     string
	development bool
)

// newRootCmd creates and configures the root command.
func newRootCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docscribe",
		Short: "Adaptive documentation-site crawler.",
		Long: `docscribe crawls a documentation site, picks a crawl strategy based
on the site's scale and requirements, and assembles the pages into a single
Markdown artifact.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig(logger)
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.docscribe/config.yaml)")
	cmd.PersistentFlags().BoolVar(&development, "dev", false, "development mode: human-readable console logs")

	cmd.AddCommand(newCrawlCmd(logger))
	cmd.AddCommand(newCacheCmd(logger))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	// A bootstrap logger until flags are parsed; the crawl command rebuilds
	// it honoring --dev.
	logger, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
