package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"eon-server/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "eon-server",
	Short: "Health data aggregation and risk summarization API",
	Long: `eon-server ingests wearable metrics from the companion app, summarises them,
and turns the summary into a clinical note, ICD-9 risk clusters and lifestyle
recommendations.

  $ eon-server serve      # run the HTTP API (default)
  $ eon-server migrate    # apply the database schema`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads the environment and configures the global logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	// Services fall back to the global logger when the request carries none.
	zerolog.DefaultContextLogger = &log.Logger
}
