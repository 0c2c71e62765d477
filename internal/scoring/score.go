package scoring

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/foliosend/foliosend/pkg/models"
)

// Sub-score weights for document and video content. The four capped
// sub-scores sum to at most 100.
const (
	durationCap   = 30.0
	completionCap = 30.0
	downloadBonus = 20.0
	returnCap     = 20.0
	returnStep    = 10.0 // per prior session, up to returnCap

	// Track-sites have no pages, so the completion weight is
	// redistributed onto duration and return visits.
	trackSiteDurationCap = 45.0
	trackSiteReturnCap   = 35.0
	trackSiteReturnFirst = 20.0
)

// Intent signal thresholds, shared by every consumer that derives
// intent from a score.
const (
	HotThreshold  = 70
	WarmThreshold = 40
)

// Hot-lead classifier thresholds
const (
	hotLeadScore         = 80
	hotLeadDownloadScore = 50
	hotLeadReturnVisits  = 2
)

// DefaultHighEngagementSeconds is the dwell time at which the duration
// sub-score reaches its cap for document content.
const DefaultHighEngagementSeconds = 120.0

// Video completion bonus tiers. Finishing a video is a stronger signal
// than proportionally watching it, so the bonus escalates in steps
// rather than linearly.
const (
	videoTierFull   = 100.0
	videoTierHigh   = 75.0
	videoTierMedium = 50.0
	videoTierLow    = 25.0

	videoBonusFull   = 30.0
	videoBonusHigh   = 22.0
	videoBonusMedium = 15.0
	videoBonusLow    = 8.0
)

// Config holds tunable scoring parameters
type Config struct {
	HighEngagementSeconds float64 // dwell time for a full duration sub-score
}

// DefaultConfig returns the default scoring configuration
func DefaultConfig() Config {
	return Config{HighEngagementSeconds: DefaultHighEngagementSeconds}
}

// Score computes the engagement score for one session from its raw
// counters. The result is always in [0, 100]. Malformed numeric inputs
// are sanitized to 0 or the nearest valid bound; the computation never
// fails.
func Score(s *models.Session, cfg Config) int {
	threshold := cfg.HighEngagementSeconds
	if threshold <= 0 {
		threshold = DefaultHighEngagementSeconds
	}

	var total float64
	switch s.ContentType {
	case models.ContentTypeVideo:
		total = videoScore(s)
	case models.ContentTypeTrackSite:
		total = trackSiteScore(s, threshold)
	default:
		total = documentScore(s, threshold)
	}

	return int(clamp(total, 0, 100))
}

// Intent maps a score onto the hot/warm/cold intent signal
func Intent(score int) string {
	switch {
	case score >= HotThreshold:
		return models.IntentHot
	case score >= WarmThreshold:
		return models.IntentWarm
	default:
		return models.IntentCold
	}
}

// IsHotLead reports whether a session qualifies its viewer as a hot
// lead. A strong signal on any one axis qualifies, or a weaker signal
// repeated; a single download with low engagement does not.
func IsHotLead(score int, downloaded bool, returnVisits int) bool {
	if score >= hotLeadScore {
		return true
	}
	if downloaded && score >= hotLeadDownloadScore {
		return true
	}
	return returnVisits >= hotLeadReturnVisits
}

// documentScore applies the standard duration/completion/action/return
// weighting for paged content.
func documentScore(s *models.Session, threshold float64) float64 {
	duration := sanitize(s.Duration, "duration")

	durPts := clamp(duration/threshold, 0, 1) * durationCap
	compPts := completionPercent(s) / 100 * completionCap

	total := durPts + compPts
	if s.Downloaded {
		total += downloadBonus
	}
	total += returnPoints(s)
	return total
}

// trackSiteScore redistributes the completion weight onto duration and
// return visits, so a track-site viewer can still reach 100.
func trackSiteScore(s *models.Session, threshold float64) float64 {
	duration := sanitize(s.Duration, "duration")

	total := clamp(duration/threshold, 0, 1) * trackSiteDurationCap
	if s.Downloaded {
		total += downloadBonus
	}
	switch {
	case s.ReturnVisitCount >= 2:
		total += trackSiteReturnCap
	case s.ReturnVisitCount == 1 || s.ReturnVisit:
		total += trackSiteReturnFirst
	}
	return total
}

// videoScore derives both the duration and completion sub-scores from
// the watch-time ratio.
func videoScore(s *models.Session) float64 {
	watch := sanitize(s.WatchTime, "watch_time")
	videoDur := sanitize(s.VideoDuration, "video_duration")

	ratio := 0.0
	if videoDur > 0 {
		ratio = clamp(watch/videoDur, 0, 1)
	}

	watched := ratio * 100
	if s.VideoFinished {
		watched = 100
	}

	total := ratio * durationCap
	switch {
	case watched >= videoTierFull:
		total += videoBonusFull
	case watched >= videoTierHigh:
		total += videoBonusHigh
	case watched >= videoTierMedium:
		total += videoBonusMedium
	case watched >= videoTierLow:
		total += videoBonusLow
	}

	if s.Downloaded {
		total += downloadBonus
	}
	total += returnPoints(s)
	return total
}

// returnPoints awards the return-visit sub-score, scaling with the
// number of prior sessions up to the cap so that repeat visits keep
// counting.
func returnPoints(s *models.Session) float64 {
	count := s.ReturnVisitCount
	if count <= 0 && s.ReturnVisit {
		count = 1
	}
	if count <= 0 {
		return 0
	}
	pts := float64(count) * returnStep
	if pts > returnCap {
		pts = returnCap
	}
	return pts
}

// completionPercent resolves the completion percentage for paged
// content, deriving it from the page counters when the cached value is
// absent. Unknown total pages yields 0.
func completionPercent(s *models.Session) float64 {
	pct := sanitize(s.CompletionPercent, "completion_percent")
	if pct > 0 {
		return clamp(pct, 0, 100)
	}
	if s.TotalPages > 0 && s.MaxPageReached > 0 {
		return clamp(float64(s.MaxPageReached)/float64(s.TotalPages)*100, 0, 100)
	}
	return 0
}

// sanitize maps malformed numeric input (negative, NaN, Inf) to 0 and
// surfaces the occurrence for diagnostics. Analytics prefer a slightly
// wrong number over an aborted aggregate.
func sanitize(v float64, field string) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		log.Debug().Str("field", field).Float64("value", v).Msg("Sanitized malformed telemetry value")
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
