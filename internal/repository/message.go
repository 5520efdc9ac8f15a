package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/models"
)

type MessageRepository interface {
	// UpsertRawMessage inserts msg, ignoring it when the message_id already exists.
	// It reports whether a new row was written.
	UpsertRawMessage(ctx context.Context, msg *models.RawMessage) (bool, error)
	GetRawMessage(ctx context.Context, messageID int64) (*models.RawMessage, error)
	// PendingAssets returns downloaded media that has no detection row yet.
	PendingAssets(ctx context.Context) ([]models.PendingAsset, error)
}

type messageRepository struct {
	conn   *Connector
	logger *zap.Logger
}

func NewMessageRepository(conn *Connector, logger *zap.Logger) MessageRepository {
	return &messageRepository{conn: conn, logger: logger}
}

const upsertRawMessageQuery = `
	INSERT INTO raw_telegram_messages (
		message_id, channel_id, channel_username, sender_id, sender_username,
		message_text, message_date, views, forwards, replies, reactions, link,
		media, media_type, media_status, local_media_path, source_file, extracted_at
	) VALUES (
		:message_id, :channel_id, :channel_username, :sender_id, :sender_username,
		:message_text, :message_date, :views, :forwards, :replies, :reactions, :link,
		:media, :media_type, :media_status, :local_media_path, :source_file, :extracted_at
	) ON CONFLICT (message_id) DO NOTHING`

func (r *messageRepository) UpsertRawMessage(ctx context.Context, msg *models.RawMessage) (bool, error) {
	var inserted bool
	err := r.conn.withConn(ctx, func(db *sqlx.DB) error {
		res, err := db.NamedExecContext(ctx, upsertRawMessageQuery, msg)
		if err != nil {
			return fmt.Errorf("insert raw message %d: %w", msg.MessageID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert raw message %d: %w", msg.MessageID, err)
		}
		inserted = n > 0
		return nil
	})
	return inserted, err
}

const selectRawMessageQuery = `
	SELECT message_id, channel_id, channel_username, sender_id, sender_username,
	       message_text, message_date, views, forwards, replies, reactions, link,
	       media, media_type, media_status, local_media_path, source_file, extracted_at
	FROM raw_telegram_messages
	WHERE message_id = ?`

func (r *messageRepository) GetRawMessage(ctx context.Context, messageID int64) (*models.RawMessage, error) {
	var msg models.RawMessage
	err := r.conn.withConn(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &msg, db.Rebind(selectRawMessageQuery), messageID)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// A message is pending while its media was downloaded and no detection row exists
// for the same (message_id, image_path). Skip and failure sentinels never qualify.
const pendingAssetsQuery = `
	SELECT rtm.message_id, rtm.local_media_path
	FROM raw_telegram_messages rtm
	LEFT JOIN raw_image_detections rid
	       ON rtm.message_id = rid.message_id
	      AND rtm.local_media_path = rid.image_path
	WHERE rtm.media_status = ?
	  AND rtm.local_media_path IS NOT NULL
	  AND rid.message_id IS NULL
	ORDER BY rtm.message_id`

func (r *messageRepository) PendingAssets(ctx context.Context) ([]models.PendingAsset, error) {
	var pending []models.PendingAsset
	err := r.conn.withConn(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &pending, db.Rebind(pendingAssetsQuery), string(models.MediaPresent))
	})
	if err != nil {
		return nil, fmt.Errorf("select pending assets: %w", err)
	}
	return pending, nil
}
