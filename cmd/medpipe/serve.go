package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/handler"
	"github.com/fuaSmart/medical-project/internal/repository"
	"github.com/fuaSmart/medical-project/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only data API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.Driver != repository.DriverPostgres {
				return fmt.Errorf("serve requires the postgres driver, got %q", a.cfg.Database.Driver)
			}
			ctx := cmd.Context()

			db, err := repository.OpenPool(ctx, a.connector(), a.cfg.Database.MaxOpenConns)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					a.logger.Error("Error closing database", zap.Error(err))
				}
			}()

			api := handler.NewHandler(repository.NewQueryRepository(db, a.logger), a.logger)
			return server.NewServer(a.cfg.Server.Port, a.logger, api).Run(ctx)
		},
	}
}
