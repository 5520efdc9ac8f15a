package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/models"
)

type DetectionRepository interface {
	// UpsertDetection writes rec, replacing the objects and timestamp of an existing
	// row with the same (message_id, image_path).
	UpsertDetection(ctx context.Context, rec *models.DetectionRecord) error
	GetDetection(ctx context.Context, messageID int64, imagePath string) (*models.DetectionRecord, error)
}

type detectionRepository struct {
	conn   *Connector
	logger *zap.Logger
}

func NewDetectionRepository(conn *Connector, logger *zap.Logger) DetectionRepository {
	return &detectionRepository{conn: conn, logger: logger}
}

const upsertDetectionQuery = `
	INSERT INTO raw_image_detections (
		message_id, image_path, detected_objects, detection_timestamp
	) VALUES (
		:message_id, :image_path, :detected_objects, :detection_timestamp
	) ON CONFLICT (message_id, image_path) DO UPDATE SET
		detected_objects = excluded.detected_objects,
		detection_timestamp = excluded.detection_timestamp`

func (r *detectionRepository) UpsertDetection(ctx context.Context, rec *models.DetectionRecord) error {
	return r.conn.withConn(ctx, func(db *sqlx.DB) error {
		if _, err := db.NamedExecContext(ctx, upsertDetectionQuery, rec); err != nil {
			return fmt.Errorf("upsert detections for message %d (%s): %w", rec.MessageID, rec.ImagePath, err)
		}
		r.logger.Debug("Inserted/updated detections",
			zap.Int64("message_id", rec.MessageID),
			zap.String("image_path", rec.ImagePath),
			zap.Int("objects", len(rec.Objects)))
		return nil
	})
}

const selectDetectionQuery = `
	SELECT message_id, image_path, detected_objects, detection_timestamp
	FROM raw_image_detections
	WHERE message_id = ? AND image_path = ?`

func (r *detectionRepository) GetDetection(ctx context.Context, messageID int64, imagePath string) (*models.DetectionRecord, error) {
	var rec models.DetectionRecord
	err := r.conn.withConn(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &rec, db.Rebind(selectDetectionQuery), messageID, imagePath)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
