package main

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/dispensing-api/config"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "medcolctl",
		Short:         "Operator tool for the Medcol dispensing API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: search ./config.yml, ./config, /app)")

	load := func() (*config.Config, *logger.Logger, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, nil, err
		}
		l := logger.NewLogger(&logger.Config{
			Level:      logger.ParseLevel(cfg.Log.Level),
			TimeFormat: time.RFC3339,
			Output:     os.Stderr,
			JSON:       cfg.Log.JSON,
		})
		return cfg, l, nil
	}

	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(seedCmd(load))
	rootCmd.AddCommand(userCmd(load))
	rootCmd.AddCommand(hashPasswordCmd(load))
	rootCmd.AddCommand(lookupCmd(load))
	rootCmd.AddCommand(eventsCmd(load))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

type loader func() (*config.Config, *logger.Logger, error)
