package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/config"
	"github.com/fuaSmart/medical-project/internal/repository"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "medpipe",
		Short:         "Telegram channel ingestion and image object-detection pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "configs/config.yml", "path to the YAML config file")

	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newScrapeCmd(a))
	rootCmd.AddCommand(newDetectCmd(a))
	rootCmd.AddCommand(newServeCmd(a))

	return rootCmd
}

// newLogger builds a development logger by default and a production (JSON) one
// when format is "json".
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

func (a *app) connector() *repository.Connector {
	db := a.cfg.Database
	return repository.NewConnector(db.Driver, db.URL, db.ConnectAttempts, db.ConnectDelay, a.logger)
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("Applying database migrations...")
			return repository.EnsureSchema(cmd.Context(), a.connector())
		},
	}
}
