package enrich

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/detector"
	"github.com/fuaSmart/medical-project/internal/metrics"
	"github.com/fuaSmart/medical-project/internal/models"
	"github.com/fuaSmart/medical-project/internal/repository"
)

// PendingSource lists media that still needs detection.
type PendingSource interface {
	PendingAssets(ctx context.Context) ([]models.PendingAsset, error)
}

// DetectionStore persists detection results.
type DetectionStore interface {
	UpsertDetection(ctx context.Context, rec *models.DetectionRecord) error
}

// Model is the object-detection model.
type Model interface {
	Infer(ctx context.Context, imagePath string) ([]detector.RawDetection, error)
	ClassName(id int) string
}

// Summary reports what one pass did.
type Summary struct {
	Pending int
	Written int
	Missing int
	Failed  int
}

// Runner drains the pending-media work queue through the detection model.
type Runner struct {
	pending PendingSource
	store   DetectionStore
	model   Model
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(pending PendingSource, store DetectionStore, model Model, logger *zap.Logger) *Runner {
	return &Runner{
		pending: pending,
		store:   store,
		model:   model,
		logger:  logger,
		now:     time.Now,
	}
}

// RunOnce processes the current snapshot of pending media. Failing to read the
// queue is returned; failures on single assets are logged and leave the asset
// pending for the next pass.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary

	assets, err := r.pending.PendingAssets(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list pending media: %w", err)
	}
	sum.Pending = len(assets)
	if len(assets) == 0 {
		r.logger.Info("No new images with media paths found to process.")
		return sum, nil
	}
	r.logger.Info("Found new images to process", zap.Int("count", len(assets)))

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		log := r.logger.With(zap.Int64("message_id", asset.MessageID), zap.String("image_path", asset.ImagePath))

		if _, err := os.Stat(asset.ImagePath); err != nil {
			log.Warn("Image file not found, skipping", zap.Error(err))
			metrics.DetectionRuns.WithLabelValues("missing_file").Inc()
			sum.Missing++
			continue
		}

		if err := r.process(ctx, asset); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			if errors.Is(err, repository.ErrConnectionExhausted) {
				log.Error("Database unavailable, stopping enrichment", zap.Error(err))
				return sum, err
			}
			log.Error("Error processing image", zap.Error(err))
			metrics.DetectionRuns.WithLabelValues("failed").Inc()
			sum.Failed++
			continue
		}
		metrics.DetectionRuns.WithLabelValues("written").Inc()
		sum.Written++
	}

	r.logger.Info("Finished processing new images",
		zap.Int("written", sum.Written),
		zap.Int("missing", sum.Missing),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

func (r *Runner) process(ctx context.Context, asset models.PendingAsset) error {
	raw, err := r.model.Infer(ctx, asset.ImagePath)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}

	rec := &models.DetectionRecord{
		MessageID:  asset.MessageID,
		ImagePath:  asset.ImagePath,
		Objects:    r.mapDetections(raw),
		DetectedAt: r.now().UTC(),
	}
	return r.store.UpsertDetection(ctx, rec)
}

// mapDetections keeps the model's order. Boxes that are not exactly four corners
// are dropped.
func (r *Runner) mapDetections(raw []detector.RawDetection) models.Detections {
	out := make(models.Detections, 0, len(raw))
	for _, d := range raw {
		if len(d.BBox) != 4 {
			r.logger.Warn("Dropping detection with malformed box",
				zap.Int("class_id", d.ClassID),
				zap.Int("bbox_len", len(d.BBox)))
			continue
		}
		name := d.ClassName
		if name == "" {
			name = r.model.ClassName(d.ClassID)
		}
		out = append(out, models.Detection{
			ClassID:    d.ClassID,
			ClassName:  name,
			Confidence: clampConfidence(d.Confidence),
			BBox:       [4]float64{d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]},
		})
	}
	return out
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Min(1, math.Max(0, c))
}

// RunEvery calls RunOnce immediately and then on every tick until ctx is done. A
// failed pass is logged and retried on the next tick; connection exhaustion stops
// the loop.
func (r *Runner) RunEvery(ctx context.Context, interval time.Duration) error {
	r.logger.Info("Detection runner started.", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.logger.Info("Detection runner stopped.")
				return ctxErr
			}
			if errors.Is(err, repository.ErrConnectionExhausted) {
				return err
			}
			r.logger.Error("Detection pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Detection runner stopped.")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
