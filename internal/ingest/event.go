package ingest

import (
	"context"
	"time"

	"github.com/fuaSmart/medical-project/internal/models"
)

const (
	MediaKindPhoto    = "photo"
	MediaKindDocument = "document"
	MediaKindOther    = "other_media"
)

// Media describes an attachment as announced by the source, before any download.
type Media struct {
	Kind         string `json:"kind"`
	Size         int64  `json:"size"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Downloadable bool   `json:"downloadable"`

	// Location is the source-specific handle the Downloader needs.
	Location any `json:"-"`
}

// ReplyInfo is the reply/comment thread metadata of a message.
type ReplyInfo struct {
	Count          int   `json:"replies"`
	MaxID          int   `json:"max_id,omitempty"`
	CommentChannel int64 `json:"channel_id,omitempty"`
}

// Reaction is one reaction counter on a message.
type Reaction struct {
	Emoticon string `json:"emoticon"`
	Count    int    `json:"count"`
}

// Event is a source message, independent of whether it came from history or
// from the live update stream.
type Event struct {
	MessageID       int64
	ChannelID       int64
	ChannelUsername string
	SenderID        *int64
	SenderUsername  *string
	Text            string
	Date            time.Time
	Views           int
	Forwards        int
	Replies         *ReplyInfo
	Reactions       []Reaction
	Media           *Media
}

// Source is the external message feed.
type Source interface {
	// History calls fn for up to limit past messages of channel, newest first.
	// A limit <= 0 walks the whole history. Iteration stops at the first error fn returns.
	History(ctx context.Context, channel string, limit int, fn func(Event) error) error
	// Subscribe delivers new messages posted to channels until ctx is done.
	Subscribe(ctx context.Context, channels []string) (<-chan Event, error)
}

// Downloader fetches an attachment into dir and returns the written file path.
type Downloader interface {
	Download(ctx context.Context, media *Media, dir string, messageID int64) (string, error)
}

// MessageStore persists normalized messages.
type MessageStore interface {
	UpsertRawMessage(ctx context.Context, msg *models.RawMessage) (bool, error)
}
