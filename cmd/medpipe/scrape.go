package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fuaSmart/medical-project/internal/handler"
	"github.com/fuaSmart/medical-project/internal/ingest"
	"github.com/fuaSmart/medical-project/internal/repository"
	"github.com/fuaSmart/medical-project/internal/server"
	"github.com/fuaSmart/medical-project/internal/telegram"
)

func newScrapeCmd(a *app) *cobra.Command {
	var channels []string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Ingest Telegram channel messages and media",
	}
	cmd.PersistentFlags().StringSliceVar(&channels, "channels", nil, "channels to scrape (default from config)")

	var limit int
	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Walk recent channel history once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Scraper.BackfillLimit
			}
			return a.runScraper(cmd.Context(), func(ctx context.Context, c *ingest.Coordinator) error {
				return c.Backfill(ctx, a.channels(channels), limit)
			})
		},
	}
	backfill.Flags().IntVar(&limit, "limit", 100, "messages per channel, 0 for the whole history")

	listen := &cobra.Command{
		Use:   "listen",
		Short: "Ingest new channel posts until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScraper(cmd.Context(), func(ctx context.Context, c *ingest.Coordinator) error {
				return c.Listen(ctx, a.channels(channels))
			})
		},
	}

	cmd.AddCommand(backfill, listen)
	return cmd
}

func (a *app) channels(override []string) []string {
	if len(override) > 0 {
		return override
	}
	return a.cfg.Scraper.Channels
}

// runScraper ensures the schema, starts the control server and runs fn inside an
// authorized Telegram session. The control server stops when fn returns.
func (a *app) runScraper(ctx context.Context, fn func(ctx context.Context, c *ingest.Coordinator) error) error {
	if err := a.cfg.ValidateTelegram(); err != nil {
		return err
	}

	conn := a.connector()
	if err := repository.EnsureSchema(ctx, conn); err != nil {
		return err
	}

	tg := telegram.NewClient(a.cfg.Telegram, a.logger)
	store := repository.NewMessageRepository(conn, a.logger)
	gate := ingest.NewMediaGate(tg, a.cfg.Scraper.MediaDir, a.cfg.Scraper.MaxMediaBytes, a.logger)
	coordinator := ingest.NewCoordinator(tg, gate, store, a.logger)

	control := server.NewServer(a.cfg.Scraper.ControlPort, a.logger.Named("control"),
		handler.NewControlHandler(tg.AuthCode, tg.AuthCompleted, a.logger))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		return control.Run(runCtx)
	})
	g.Go(func() error {
		defer stop()
		a.logger.Info("Starting Telegram client...")
		return tg.Run(runCtx, a.cfg.Telegram.Phone, func(ctx context.Context) error {
			return fn(ctx, coordinator)
		})
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("Scraper stopped.")
		return nil
	}
	if err != nil {
		a.logger.Error("Scraper failed", zap.Error(err))
	}
	return err
}
