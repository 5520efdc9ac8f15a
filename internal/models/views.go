package models

import "time"

// MessageView is a message as served by GET /messages.
type MessageView struct {
	MessageID       int64     `db:"message_id" json:"message_id"`
	ChannelUsername string    `db:"channel_username" json:"channel_username"`
	MessageText     string    `db:"message_text" json:"message_text"`
	MessageDate     time.Time `db:"message_date" json:"message_date"`
	ViewsCount      int       `db:"views_count" json:"views_count"`
	ForwardsCount   int       `db:"forwards_count" json:"forwards_count"`
	Link            string    `db:"link" json:"link"`
	HasMedia        bool      `db:"has_media" json:"has_media"`
}

// ChannelSummary is a channel as served by GET /channels.
type ChannelSummary struct {
	ChannelID        int64     `db:"channel_id" json:"channel_id"`
	ChannelUsername  string    `db:"channel_username" json:"channel_username"`
	FirstMessageDate time.Time `db:"first_message_date" json:"first_message_date"`
	LastMessageDate  time.Time `db:"last_message_date" json:"last_message_date"`
	TotalMessages    int64     `db:"total_messages" json:"total_messages"`
}

// ObjectDetectionView is one detected object as served by GET /image_detections.
type ObjectDetectionView struct {
	MessageID           int64     `json:"message_id"`
	DetectedMessageDate time.Time `json:"detected_message_date"`
	ChannelUsername     string    `json:"channel_username"`
	ImagePath           string    `json:"image_path"`
	DetectedObjectClass string    `json:"detected_object_class"`
	ConfidenceScore     float64   `json:"confidence_score"`
	BoxXMin             float64   `json:"box_xmin"`
	BoxYMin             float64   `json:"box_ymin"`
	BoxXMax             float64   `json:"box_xmax"`
	BoxYMax             float64   `json:"box_ymax"`
	DetectionTimestamp  time.Time `json:"detection_timestamp"`
}

// MessageFilter narrows GET /messages.
type MessageFilter struct {
	Limit           int
	Offset          int
	ChannelUsername string
	MinViews        *int
}

// DetectionFilter narrows GET /image_detections.
type DetectionFilter struct {
	Limit           int
	Offset          int
	ObjectClass     string
	MinConfidence   float64
	ChannelUsername string
}
