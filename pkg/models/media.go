// Package models defines the data structures used throughout the application
package models

import (
	"time"
)

// MediaKind identifies which side of a video we extract
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Valid reports whether the kind is one of the supported values
func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// Ext returns the container extension artifacts of this kind use
func (k MediaKind) Ext() string {
	if k == KindVideo {
		return "mp4"
	}
	return "m4a"
}

// ContentType returns the MIME type served for artifacts of this kind
func (k MediaKind) ContentType() string {
	if k == KindVideo {
		return "video/mp4"
	}
	return "audio/mp4"
}

// MetadataStatus represents the outcome of a metadata fetch
type MetadataStatus string

const (
	MetadataAvailable   MetadataStatus = "available"
	MetadataUnavailable MetadataStatus = "unavailable"
	MetadataTimeout     MetadataStatus = "timeout"
	MetadataError       MetadataStatus = "error"
)

// VideoFormat describes one video encoding reported by the extraction tool
type VideoFormat struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Note       string `json:"note"`
}

// AudioFormat describes one audio-only encoding reported by the extraction tool
type AudioFormat struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	Note     string `json:"note"`
}

// Metadata is the snapshot returned for a metadata request. It is built
// fresh on every call and never persisted.
type Metadata struct {
	VideoID        string         `json:"video_id"`
	Title          string         `json:"title"`
	Duration       int64          `json:"duration"`
	DurationString string         `json:"duration_string"`
	Uploader       string         `json:"uploader"`
	ViewCount      int64          `json:"view_count"`
	LikeCount      int64          `json:"like_count"`
	Thumbnail      string         `json:"thumbnail"`
	Description    string         `json:"description"`
	Categories     []string       `json:"categories"`
	Tags           []string       `json:"tags"`
	UploadDate     string         `json:"upload_date"`
	VideoFormats   []VideoFormat  `json:"video_formats"`
	AudioFormats   []AudioFormat  `json:"audio_formats"`
	Status         MetadataStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
}

// DownloadStatus represents the terminal state of a download attempt
type DownloadStatus string

const (
	StatusCompleted DownloadStatus = "completed"
	StatusFailed    DownloadStatus = "failed"
)

// Download represents one completed or failed download attempt kept in history
type Download struct {
	ID           int64          `json:"id" db:"id"`
	VideoID      string         `json:"video_id" db:"video_id"`
	MediaKind    MediaKind      `json:"media_kind" db:"media_kind"`
	Strategy     string         `json:"strategy" db:"strategy"`
	FilePath     string         `json:"file_path" db:"file_path"`
	FileSize     int64          `json:"file_size" db:"file_size"`
	DurationMs   int64          `json:"duration_ms" db:"duration_ms"`
	Status       DownloadStatus `json:"status" db:"status"`
	ErrorMessage string         `json:"error_message" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
