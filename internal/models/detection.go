package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Detection is a single object found by the detection model.
// BBox holds the box corners as [xmin, ymin, xmax, ymax].
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

func (d Detection) XMin() float64 { return d.BBox[0] }
func (d Detection) YMin() float64 { return d.BBox[1] }
func (d Detection) XMax() float64 { return d.BBox[2] }
func (d Detection) YMax() float64 { return d.BBox[3] }

// Detections is the ordered detected_objects column.
type Detections []Detection

// Value implements driver.Valuer. A nil list is stored as an empty JSON array so
// that an image with no objects still counts as processed.
func (d Detections) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Detection(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *Detections) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.Detections: unsupported scan type %T", src)
	}
	var out []Detection
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models.Detections: %w", err)
	}
	*d = out
	return nil
}

// DetectionRecord represents a row in the 'raw_image_detections' table.
// (message_id, image_path) is unique; a rerun replaces the stored objects.
type DetectionRecord struct {
	MessageID  int64      `db:"message_id" json:"message_id"`
	ImagePath  string     `db:"image_path" json:"image_path"`
	Objects    Detections `db:"detected_objects" json:"detected_objects"`
	DetectedAt time.Time  `db:"detection_timestamp" json:"detection_timestamp"`
}
