package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fuaSmart/medical-project/internal/models"
)

// Normalize maps an event and its media outcome to the persisted row shape.
// Both the backfill and the live path go through here.
func Normalize(ev Event, asset models.MediaAsset, extractedAt time.Time) (*models.RawMessage, error) {
	msg := &models.RawMessage{
		MessageID:       ev.MessageID,
		ChannelID:       ev.ChannelID,
		ChannelUsername: ev.ChannelUsername,
		SenderID:        ev.SenderID,
		SenderUsername:  ev.SenderUsername,
		MessageText:     ev.Text,
		MessageDate:     ev.Date.UTC(),
		Views:           ev.Views,
		Forwards:        ev.Forwards,
		Link:            Permalink(ev.ChannelUsername, ev.ChannelID, ev.MessageID),
		MediaType:       asset.StoredType(),
		MediaStatus:     asset.StoredStatus(),
		LocalMediaPath:  asset.StoredPath(),
		SourceFile:      fmt.Sprintf("telegram_channel_%s.json", ev.ChannelUsername),
		ExtractedAt:     extractedAt.UTC(),
	}

	var err error
	if ev.Replies != nil {
		if msg.Replies, err = marshalJSON(ev.Replies); err != nil {
			return nil, fmt.Errorf("encode replies: %w", err)
		}
	}
	if len(ev.Reactions) > 0 {
		if msg.Reactions, err = marshalJSON(ev.Reactions); err != nil {
			return nil, fmt.Errorf("encode reactions: %w", err)
		}
	}
	if ev.Media != nil {
		if msg.Media, err = marshalJSON(ev.Media); err != nil {
			return nil, fmt.Errorf("encode media: %w", err)
		}
	}
	return msg, nil
}

// Permalink builds the public t.me link of a message. Channels without a public
// username get the private /c/ form.
func Permalink(username string, channelID, messageID int64) string {
	if username == "" {
		return fmt.Sprintf("https://t.me/c/%d/%d", channelID, messageID)
	}
	return fmt.Sprintf("https://t.me/%s/%d", username, messageID)
}

func marshalJSON(v any) (models.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return models.JSON(b), nil
}
