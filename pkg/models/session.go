package models

import (
	"time"
)

// Session represents one viewing session of a link by one viewer
type Session struct {
	ID          string `json:"id" db:"id"`
	LinkID      string `json:"link_id" db:"link_id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	ContentType string `json:"content_type" db:"content_type"` // copied from the link at session start

	// Viewer identity, best available first
	ViewerEmail string `json:"viewer_email,omitempty" db:"viewer_email"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Attribution and client info
	Source     string `json:"source" db:"source"` // qr or direct
	DeviceType string `json:"device_type,omitempty" db:"device_type"`
	Browser    string `json:"browser,omitempty" db:"browser"`
	OS         string `json:"os,omitempty" db:"os"`
	Country    string `json:"country,omitempty" db:"country"`

	// Timing
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	Duration  float64    `json:"duration" db:"duration"` // seconds

	// Document progress
	PagesViewed       int     `json:"pages_viewed" db:"pages_viewed"`
	MaxPageReached    int     `json:"max_page_reached" db:"max_page_reached"`
	TotalPages        int     `json:"total_pages" db:"total_pages"`
	CompletionPercent float64 `json:"completion_percent" db:"completion_percent"` // 0-100
	ExitPage          int     `json:"exit_page" db:"exit_page"`

	// Engagement signals
	IdleTime    float64 `json:"idle_time" db:"idle_time"` // seconds
	TabSwitches int     `json:"tab_switches" db:"tab_switches"`
	ScrollDepth float64 `json:"scroll_depth" db:"scroll_depth"` // max percentage seen, 0-100

	// Actions
	Downloaded       bool `json:"downloaded" db:"downloaded"`
	Printed          bool `json:"printed" db:"printed"`
	Copied           bool `json:"copied" db:"copied"`
	ReturnVisit      bool `json:"return_visit" db:"return_visit"`
	ReturnVisitCount int  `json:"return_visit_count" db:"return_visit_count"` // prior sessions by this viewer

	// Video-only counters
	WatchTime           float64 `json:"watch_time,omitempty" db:"watch_time"`
	VideoDuration       float64 `json:"video_duration,omitempty" db:"video_duration"`
	VideoCompletionRate float64 `json:"video_completion_rate,omitempty" db:"video_completion_rate"` // 0-100
	VideoFinished       bool    `json:"video_finished,omitempty" db:"video_finished"`

	// Derived, cached on session close. Recomputable from the raw fields above;
	// never read as a source of truth by the aggregators.
	EngagementScore int    `json:"engagement_score" db:"engagement_score"`
	Intent          string `json:"intent" db:"intent"`
}

// Traffic source constants
const (
	SourceQR     = "qr"
	SourceDirect = "direct"
)

// Intent signal constants, shared by the scorer and every downstream consumer
const (
	IntentHot  = "hot"
	IntentWarm = "warm"
	IntentCold = "cold"
)

// PageView accumulates viewing activity for one (session, page) pair
type PageView struct {
	SessionID   string  `json:"session_id" db:"session_id"`
	LinkID      string  `json:"link_id" db:"link_id"`
	PageNumber  int     `json:"page_number" db:"page_number"`
	Duration    float64 `json:"duration" db:"duration"` // cumulative seconds on this page
	ScrollDepth float64 `json:"scroll_depth" db:"scroll_depth"` // max percentage seen
	Revisits    int     `json:"revisits" db:"revisits"`
}

// StartSessionRequest opens a viewing session for a link
type StartSessionRequest struct {
	ViewerEmail string `json:"viewer_email,omitempty"`
	Source      string `json:"source,omitempty"`
	DeviceType  string `json:"device_type,omitempty"`
	Browser     string `json:"browser,omitempty"`
	OS          string `json:"os,omitempty"`
	Country     string `json:"country,omitempty"`
}

// PageEventRequest reports dwell time and scroll depth for one page
type PageEventRequest struct {
	PageNumber  int     `json:"page_number" binding:"required"`
	Duration    float64 `json:"duration"`
	ScrollDepth float64 `json:"scroll_depth"`
}

// InteractionRequest reports a viewer action on the document
type InteractionRequest struct {
	Type string `json:"type" binding:"required"` // download, print, copy
}

// Interaction type constants
const (
	InteractionDownload = "download"
	InteractionPrint    = "print"
	InteractionCopy     = "copy"
)

// SessionClosedEvent is the message published when a session closes.
// The worker re-reads the session row, so the payload only carries what
// downstream consumers need for routing and logging.
type SessionClosedEvent struct {
	SessionID       string    `json:"session_id"`
	LinkID          string    `json:"link_id"`
	OwnerID         string    `json:"owner_id"`
	ViewerKey       string    `json:"viewer_key"`
	EngagementScore int       `json:"engagement_score"`
	Intent          string    `json:"intent"`
	HotLead         bool      `json:"hot_lead"`
	ClosedAt        time.Time `json:"closed_at"`
}

// VideoProgressRequest reports watch progress for video content
type VideoProgressRequest struct {
	WatchTime     float64 `json:"watch_time"`
	VideoDuration float64 `json:"video_duration"`
	Finished      bool    `json:"finished"`
}

// CloseSessionRequest finalizes a session with last-known counters.
// ViewerEmail carries an identity captured mid-session, for example
// through an email gate, so an anonymous session can still close under
// its real viewer key.
type CloseSessionRequest struct {
	IdleTime    float64 `json:"idle_time"`
	TabSwitches int     `json:"tab_switches"`
	ViewerEmail string  `json:"viewer_email,omitempty"`
}
