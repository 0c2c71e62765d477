package models

import (
	"time"
)

// LinkAnalytics represents aggregated performance metrics for a link
type LinkAnalytics struct {
	LinkID           string    `json:"link_id" db:"link_id"`
	ContentType      string    `json:"content_type" db:"content_type"`
	PerformanceScore int       `json:"performance_score" db:"performance_score"` // 0-100
	TotalViews       int       `json:"total_views" db:"total_views"`
	UniqueViewers    int       `json:"unique_viewers" db:"unique_viewers"`
	HotLeads         int       `json:"hot_leads" db:"hot_leads"` // unique viewers with aggregated score >= hot threshold
	AvgEngagement    int       `json:"avg_engagement" db:"avg_engagement"`
	CompletionRate   int       `json:"completion_rate" db:"completion_rate"` // percent, rounded
	ReturnRate       int       `json:"return_rate" db:"return_rate"`         // percent, rounded
	QRScans          int       `json:"qr_scans" db:"qr_scans"`
	DirectClicks     int       `json:"direct_clicks" db:"direct_clicks"`
	Downloads        int       `json:"downloads" db:"downloads"`
	LastUpdated      time.Time `json:"last_updated" db:"last_updated"`
}

// ViewerSummary represents one viewer's aggregated activity on a link
type ViewerSummary struct {
	ViewerKey     string    `json:"viewer_key"`
	Email         string    `json:"email,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	Sessions      int       `json:"sessions"`
	TotalTime     float64   `json:"total_time"` // seconds across all sessions
	AvgEngagement float64   `json:"avg_engagement"`
	Score         int       `json:"score"` // aggregated viewer score, 0-100
	Intent        string    `json:"intent"`
	HotLead       bool      `json:"hot_lead"`
	Downloads     int       `json:"downloads"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// PageStats holds per-page heatmap data
type PageStats struct {
	PageNumber int     `json:"page_number"`
	AvgTime    float64 `json:"avg_time"` // seconds
	Views      int     `json:"views"`
	Heat       string  `json:"heat"` // hot, medium, cool, cold
}

// Heat tier constants
const (
	HeatHot    = "hot"
	HeatMedium = "medium"
	HeatCool   = "cool"
	HeatCold   = "cold"
)

// PageDropOff holds per-page drop-off data
type PageDropOff struct {
	PageNumber   int `json:"page_number"`
	DropOffRate  int `json:"drop_off_rate"` // percent of viewers who reached this page but not the next
	DropOffCount int `json:"drop_off_count"`
	Reached      int `json:"reached"` // viewers whose max page was >= this page
}

// Priority constants for insights and actions
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Insight is a derived observation about a link's performance.
// Computed fresh on every read, never persisted.
type Insight struct {
	Priority string  `json:"priority"`
	Icon     string  `json:"icon"`
	Label    string  `json:"label"`
	Reason   string  `json:"reason"`
	Positive bool    `json:"positive"`
	Weight   float64 `json:"-"` // ordering magnitude within a priority tier
}

// Action is a suggested follow-up derived from link aggregates
type Action struct {
	Priority   string         `json:"priority"`
	Icon       string         `json:"icon"`
	Label      string         `json:"label"`
	Reason     string         `json:"reason"`
	PageNumber int            `json:"page_number,omitempty"`
	Buttons    []ActionButton `json:"buttons,omitempty"`
	Weight     float64        `json:"-"`
}

// ActionButton is a plain label/icon pair with no bound command
type ActionButton struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// Contact is the denormalized viewer record upserted on session close.
// The merge is commutative and associative so concurrent session-close
// events for the same viewer converge regardless of order.
type Contact struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	ViewerKey     string    `json:"viewer_key" db:"viewer_key"`
	Email         string    `json:"email,omitempty" db:"email"`
	IPAddress     string    `json:"ip_address,omitempty" db:"ip_address"`
	ViewCount     int       `json:"view_count" db:"view_count"`
	TotalTime     float64   `json:"total_time" db:"total_time"`
	AvgEngagement float64   `json:"avg_engagement" db:"avg_engagement"`
	HotLead       bool      `json:"hot_lead" db:"hot_lead"`
	FirstSeen     time.Time `json:"first_seen" db:"first_seen"`
	LastSeen      time.Time `json:"last_seen" db:"last_seen"`
}
