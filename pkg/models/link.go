package models

import (
	"time"
)

// Link represents a shared document or tracked URL
type Link struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	Slug          string     `json:"slug" db:"slug"` // Short identifier used in the shared URL
	Title         string     `json:"title" db:"title"`
	ContentType   string     `json:"content_type" db:"content_type"` // document, track-site, video, other
	TargetURL     string     `json:"target_url,omitempty" db:"target_url"` // track-site redirect target
	ObjectKey     string     `json:"object_key,omitempty" db:"object_key"` // storage key of the uploaded file
	FileName      string     `json:"file_name,omitempty" db:"file_name"`
	FileSize      int64      `json:"file_size,omitempty" db:"file_size"`
	TotalPages    int        `json:"total_pages,omitempty" db:"total_pages"` // documents only
	VideoDuration float64    `json:"video_duration,omitempty" db:"video_duration"` // video only, seconds
	AllowDownload bool       `json:"allow_download" db:"allow_download"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"` // soft delete
}

// Content type constants
const (
	ContentTypeDocument  = "document"
	ContentTypeTrackSite = "track-site"
	ContentTypeVideo     = "video"
	ContentTypeOther     = "other"
)

// CreateLinkRequest is the payload for registering a new link
type CreateLinkRequest struct {
	Title         string `json:"title" binding:"required"`
	ContentType   string `json:"content_type" binding:"required"`
	TargetURL     string `json:"target_url,omitempty"` // required for track-site
	TotalPages    int    `json:"total_pages,omitempty"`
	VideoDuration float64 `json:"video_duration,omitempty"`
	AllowDownload bool   `json:"allow_download"`
}
