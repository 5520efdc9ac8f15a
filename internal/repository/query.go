package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/models"
)

// QueryRepository is the read side used by the serving API. It runs on a shared
// pool and targets the postgres schema.
type QueryRepository interface {
	ListMessages(ctx context.Context, f models.MessageFilter) ([]models.MessageView, error)
	ListChannels(ctx context.Context) ([]models.ChannelSummary, error)
	ListDetections(ctx context.Context, f models.DetectionFilter) ([]models.ObjectDetectionView, error)
	ListDetectionClasses(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type queryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewQueryRepository(db *sqlx.DB, logger *zap.Logger) QueryRepository {
	return &queryRepository{db: db, logger: logger}
}

func (r *queryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *queryRepository) ListMessages(ctx context.Context, f models.MessageFilter) ([]models.MessageView, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT
			message_id,
			channel_username,
			message_text,
			message_date,
			views AS views_count,
			forwards AS forwards_count,
			link,
			(media_status = 'present') IS TRUE AS has_media
		FROM raw_telegram_messages
		WHERE 1=1`)
	var args []any

	if f.ChannelUsername != "" {
		sb.WriteString(" AND channel_username ILIKE ?")
		args = append(args, "%"+f.ChannelUsername+"%")
	}
	if f.MinViews != nil {
		sb.WriteString(" AND views >= ?")
		args = append(args, *f.MinViews)
	}
	sb.WriteString(" ORDER BY message_date DESC LIMIT ? OFFSET ?")
	args = append(args, f.Limit, f.Offset)

	messages := []models.MessageView{}
	if err := r.db.SelectContext(ctx, &messages, r.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

const listChannelsQuery = `
	SELECT
		channel_id,
		channel_username,
		MIN(message_date) AS first_message_date,
		MAX(message_date) AS last_message_date,
		COUNT(*) AS total_messages
	FROM raw_telegram_messages
	GROUP BY channel_id, channel_username
	ORDER BY total_messages DESC`

func (r *queryRepository) ListChannels(ctx context.Context) ([]models.ChannelSummary, error) {
	channels := []models.ChannelSummary{}
	if err := r.db.SelectContext(ctx, &channels, listChannelsQuery); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

func (r *queryRepository) ListDetections(ctx context.Context, f models.DetectionFilter) ([]models.ObjectDetectionView, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT
			rid.message_id,
			rtm.message_date AS detected_message_date,
			rtm.channel_username,
			rid.image_path,
			obj->>'class_name' AS detected_object_class,
			(obj->>'confidence')::float8 AS confidence_score,
			(obj->'bbox'->>0)::float8 AS box_xmin,
			(obj->'bbox'->>1)::float8 AS box_ymin,
			(obj->'bbox'->>2)::float8 AS box_xmax,
			(obj->'bbox'->>3)::float8 AS box_ymax,
			rid.detection_timestamp
		FROM raw_image_detections rid
		JOIN raw_telegram_messages rtm ON rtm.message_id = rid.message_id
		CROSS JOIN LATERAL jsonb_array_elements(rid.detected_objects) AS obj
		WHERE 1=1`)
	var args []any

	if f.ObjectClass != "" {
		sb.WriteString(" AND obj->>'class_name' ILIKE ?")
		args = append(args, "%"+f.ObjectClass+"%")
	}
	if f.MinConfidence > 0 {
		sb.WriteString(" AND (obj->>'confidence')::float8 >= ?")
		args = append(args, f.MinConfidence)
	}
	if f.ChannelUsername != "" {
		sb.WriteString(" AND rtm.channel_username ILIKE ?")
		args = append(args, "%"+f.ChannelUsername+"%")
	}
	sb.WriteString(" ORDER BY rid.detection_timestamp DESC LIMIT ? OFFSET ?")
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	detections := []models.ObjectDetectionView{}
	for rows.Next() {
		var row models.ObjectDetectionView
		if err := rows.Scan(
			&row.MessageID,
			&row.DetectedMessageDate,
			&row.ChannelUsername,
			&row.ImagePath,
			&row.DetectedObjectClass,
			&row.ConfidenceScore,
			&row.BoxXMin,
			&row.BoxYMin,
			&row.BoxXMax,
			&row.BoxYMax,
			&row.DetectionTimestamp,
		); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, row)
	}
	return detections, rows.Err()
}

const listDetectionClassesQuery = `
	SELECT DISTINCT obj->>'class_name' AS detected_object_class
	FROM raw_image_detections rid
	CROSS JOIN LATERAL jsonb_array_elements(rid.detected_objects) AS obj
	ORDER BY detected_object_class`

func (r *queryRepository) ListDetectionClasses(ctx context.Context) ([]string, error) {
	classes := []string{}
	if err := r.db.SelectContext(ctx, &classes, listDetectionClassesQuery); err != nil {
		return nil, fmt.Errorf("list detection classes: %w", err)
	}
	return classes, nil
}
