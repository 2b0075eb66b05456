// Package storage persists an audit trail of observed frames and delivered
// notifications. It is optional: the monitor runs fine without it.
package storage

import (
	"context"
	"time"
)

type Config struct {
	// Driver selects the backend: "file" (JSON lines) or "sqlite"
	// (requires the sqlite build tag). Empty disables storage.
	Driver string
	Path   string
}

// NotificationRecord is one delivery attempt to one channel.
type NotificationRecord struct {
	Time    time.Time `json:"time"`
	Channel string    `json:"channel"`
	Title   string    `json:"title"`
	Success bool      `json:"success"`
}

// ImageRecord is one frame observed in the image history.
type ImageRecord struct {
	Time       time.Time `json:"time"`
	Camera     string    `json:"camera"`
	ImageType  string    `json:"image_type"`
	Filter     string    `json:"filter"`
	Exposure   float64   `json:"exposure"`
	HFR        float64   `json:"hfr"`
	Stars      int       `json:"stars"`
	Target     string    `json:"target,omitempty"`
	Notified   bool      `json:"notified"`
	CapturedAt string    `json:"captured_at"`
}

type Store interface {
	RecordNotification(ctx context.Context, rec NotificationRecord) error
	RecordImage(ctx context.Context, rec ImageRecord) error
	Close() error
}
