package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// RawMessage represents a row in the 'raw_telegram_messages' table.
// message_id is the dedup key: the first write for an id wins.
type RawMessage struct {
	MessageID       int64     `db:"message_id" json:"message_id"`
	ChannelID       int64     `db:"channel_id" json:"channel_id"`
	ChannelUsername string    `db:"channel_username" json:"channel_username"`
	SenderID        *int64    `db:"sender_id" json:"sender_id,omitempty"`
	SenderUsername  *string   `db:"sender_username" json:"sender_username,omitempty"`
	MessageText     string    `db:"message_text" json:"message_text"`
	MessageDate     time.Time `db:"message_date" json:"message_date"`
	Views           int       `db:"views" json:"views"`
	Forwards        int       `db:"forwards" json:"forwards"`
	Replies         JSON      `db:"replies" json:"replies,omitempty"`
	Reactions       JSON      `db:"reactions" json:"reactions,omitempty"`
	Link            string    `db:"link" json:"link"`
	Media           JSON      `db:"media" json:"media,omitempty"`
	MediaType       *string   `db:"media_type" json:"media_type,omitempty"`
	MediaStatus     *string   `db:"media_status" json:"media_status,omitempty"`
	LocalMediaPath  *string   `db:"local_media_path" json:"local_media_path,omitempty"`
	SourceFile      string    `db:"source_file" json:"source_file"`
	ExtractedAt     time.Time `db:"extracted_at" json:"extracted_at"`
}

// MediaState is the outcome of media acquisition for a single message.
type MediaState string

const (
	MediaAbsent          MediaState = ""
	MediaPresent         MediaState = "present"
	MediaSkippedTooLarge MediaState = "skipped_too_large"
	MediaDownloadFailed  MediaState = "download_failed"
)

// DownloadFailedSentinel is stored in local_media_path when a download fails.
const DownloadFailedSentinel = "Download_Failed"

// MediaAsset is the media outcome embedded in a RawMessage. It is decided once,
// before the message row is written, and never changes afterwards.
type MediaAsset struct {
	State  MediaState
	Kind   string // photo, document, other_media
	Path   string
	Reason string
}

// StoredPath returns the value persisted in local_media_path.
func (a MediaAsset) StoredPath() *string {
	var v string
	switch a.State {
	case MediaPresent:
		v = a.Path
	case MediaSkippedTooLarge:
		v = a.Reason
	case MediaDownloadFailed:
		v = DownloadFailedSentinel
	default:
		return nil
	}
	return &v
}

// StoredStatus returns the value persisted in media_status.
func (a MediaAsset) StoredStatus() *string {
	if a.State == MediaAbsent {
		return nil
	}
	v := string(a.State)
	return &v
}

// StoredType returns the value persisted in media_type. Attachments that were
// never downloadable still record their kind.
func (a MediaAsset) StoredType() *string {
	switch {
	case a.State == MediaAbsent && a.Kind == "":
		return nil
	case a.State == MediaSkippedTooLarge:
		v := string(MediaSkippedTooLarge)
		return &v
	default:
		v := a.Kind
		return &v
	}
}

// PendingAsset is one unit of enrichment work: a downloaded file with no detection row yet.
type PendingAsset struct {
	MessageID int64  `db:"message_id"`
	ImagePath string `db:"local_media_path"`
}

// JSON holds a semi-structured column (JSONB on postgres, TEXT on sqlite).
type JSON []byte

// Value implements driver.Valuer. Empty values are stored as NULL.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("models.JSON: unsupported scan type %T", src)
	}
	return nil
}

// MarshalJSON emits the raw document, or null when empty.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores a copy of the raw document.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("models.JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[:0], data...)
	return nil
}
