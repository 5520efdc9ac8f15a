package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/metrics"
	"github.com/fuaSmart/medical-project/internal/models"
)

const bytesPerMB = 1024 * 1024

// MediaGate decides whether an attachment is downloaded and records the outcome.
type MediaGate struct {
	downloader Downloader
	dir        string
	maxBytes   int64
	logger     *zap.Logger
}

// NewMediaGate creates a gate that stores files under dir/<channel> and refuses
// attachments declared larger than maxBytes.
func NewMediaGate(downloader Downloader, dir string, maxBytes int64, logger *zap.Logger) *MediaGate {
	return &MediaGate{
		downloader: downloader,
		dir:        dir,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// TooLargeReason is the skip sentinel stored for oversized attachments.
func TooLargeReason(size, maxBytes int64) string {
	return fmt.Sprintf("File too large (%.2fMB > %.2fMB)",
		float64(size)/bytesPerMB, float64(maxBytes)/bytesPerMB)
}

// Acquire always returns a definite state. Download failures are terminal for the
// message and are not retried.
func (g *MediaGate) Acquire(ctx context.Context, channel string, messageID int64, media *Media) models.MediaAsset {
	if media == nil {
		return models.MediaAsset{State: models.MediaAbsent}
	}
	if !media.Downloadable {
		// Geo points, polls and web pages keep their kind but have no file.
		return models.MediaAsset{State: models.MediaAbsent, Kind: media.Kind}
	}

	if media.Size > g.maxBytes {
		reason := TooLargeReason(media.Size, g.maxBytes)
		g.logger.Info("Skipping media download",
			zap.Int64("message_id", messageID),
			zap.String("channel", channel),
			zap.String("reason", reason))
		metrics.MediaOutcomes.WithLabelValues(string(models.MediaSkippedTooLarge)).Inc()
		return models.MediaAsset{State: models.MediaSkippedTooLarge, Kind: media.Kind, Reason: reason}
	}

	dir := filepath.Join(g.dir, channelDir(channel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return g.failed(messageID, channel, media, fmt.Errorf("create media dir: %w", err))
	}

	path, err := g.downloader.Download(ctx, media, dir, messageID)
	if err != nil {
		return g.failed(messageID, channel, media, err)
	}

	metrics.MediaOutcomes.WithLabelValues(string(models.MediaPresent)).Inc()
	g.logger.Debug("Media downloaded",
		zap.Int64("message_id", messageID),
		zap.String("path", path),
		zap.Int64("size", media.Size))
	return models.MediaAsset{State: models.MediaPresent, Kind: media.Kind, Path: path}
}

func (g *MediaGate) failed(messageID int64, channel string, media *Media, err error) models.MediaAsset {
	g.logger.Error("Error downloading media",
		zap.Int64("message_id", messageID),
		zap.String("channel", channel),
		zap.Error(err))
	metrics.MediaOutcomes.WithLabelValues(string(models.MediaDownloadFailed)).Inc()
	return models.MediaAsset{State: models.MediaDownloadFailed, Kind: media.Kind}
}

func channelDir(channel string) string {
	name := filepath.Base(filepath.Clean("/" + channel))
	if name == "/" || name == "." {
		return "unknown"
	}
	return name
}
