package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/detector"
	"github.com/fuaSmart/medical-project/internal/enrich"
	"github.com/fuaSmart/medical-project/internal/repository"
)

func newDetectCmd(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run object detection over downloaded media that has no results yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Detector.Interval
			}
			return a.runDetect(cmd.Context(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat every interval until interrupted; 0 runs a single pass")
	return cmd
}

func (a *app) runDetect(ctx context.Context, interval time.Duration) error {
	conn := a.connector()
	if err := repository.EnsureSchema(ctx, conn); err != nil {
		return err
	}

	model := detector.NewClient(a.cfg.Detector.URL, a.cfg.Detector.Timeout)
	if info, err := model.LoadClasses(ctx); err != nil {
		a.logger.Warn("Failed to load model class names, falling back to ids", zap.Error(err))
	} else {
		a.logger.Info("Detection model ready", zap.String("model", info.Model), zap.Int("classes", len(info.Names)))
	}

	runner := enrich.NewRunner(
		repository.NewMessageRepository(conn, a.logger),
		repository.NewDetectionRepository(conn, a.logger),
		model,
		a.logger,
	)

	if interval <= 0 {
		_, err := runner.RunOnce(ctx)
		return err
	}

	err := runner.RunEvery(ctx, interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
