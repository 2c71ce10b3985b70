package main

import (
	"github.com/spf13/cobra"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "events",
	Short: "EventHawk events service",
	Long: `events runs the EventHawk event distribution service.

Publishers push CloudEvents, consumers register webhook subscriptions and
the service fans every event out to the matching, authorized subscribers.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/eventhawk/events/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the configuration and installs the default logger from it.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("events"))
	logging.SetDefault(logger)
	return cfg, logger, nil
}
