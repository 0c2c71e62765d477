package scoring

import (
	"math"

	"github.com/foliosend/foliosend/pkg/models"
)

// Frequency bonus for repeated engagement: each session beyond the
// first adds to the viewer's best single-session score, up to the cap.
const (
	frequencyStep = 5.0
	frequencyCap  = 15.0
)

// ViewerKey derives the canonical grouping key for a session's viewer:
// email when present, else IP address, else the session's own id as a
// singleton group. Every aggregator must group by this one function;
// under-counting a viewer is worse than over-counting a stranger.
func ViewerKey(s *models.Session) string {
	if s.ViewerEmail != "" {
		return "email:" + s.ViewerEmail
	}
	if s.IPAddress != "" {
		return "ip:" + s.IPAddress
	}
	return "session:" + s.ID
}

// GroupByViewer partitions sessions into viewer groups keyed by
// ViewerKey. Session order within each group follows input order.
func GroupByViewer(sessions []*models.Session) map[string][]*models.Session {
	groups := make(map[string][]*models.Session)
	for _, s := range sessions {
		key := ViewerKey(s)
		groups[key] = append(groups[key], s)
	}
	return groups
}

// ViewerAggregate maintains running totals for one viewer across
// sessions. Adding the viewer's full session history in any order
// yields the same aggregate as a from-scratch recompute.
type ViewerAggregate struct {
	Sessions      int
	TotalTime     float64
	Downloads     int
	BestScore     int
	engagementSum float64
}

// Add folds one session into the aggregate
func (a *ViewerAggregate) Add(s *models.Session, cfg Config) {
	score := Score(s, cfg)

	a.Sessions++
	a.TotalTime += sanitize(s.Duration, "duration")
	a.engagementSum += float64(score)
	if s.Downloaded {
		a.Downloads++
	}
	if score > a.BestScore {
		a.BestScore = score
	}
}

// Score returns the aggregated viewer score: the best demonstrated
// single-session engagement plus a frequency bonus for repeat
// sessions, clamped to 100. A mediocre session never dilutes a strong
// one; this measures individual intent, not content performance.
func (a *ViewerAggregate) Score() int {
	if a.Sessions == 0 {
		return 0
	}
	bonus := float64(a.Sessions-1) * frequencyStep
	if bonus > frequencyCap {
		bonus = frequencyCap
	}
	return int(clamp(float64(a.BestScore)+bonus, 0, 100))
}

// AvgEngagement returns the running-mean engagement score across the
// viewer's sessions.
func (a *ViewerAggregate) AvgEngagement() float64 {
	if a.Sessions == 0 {
		return 0
	}
	return a.engagementSum / float64(a.Sessions)
}

// AggregateViewer folds all sessions sharing one viewer key into a
// single aggregated score in [0, 100].
func AggregateViewer(sessions []*models.Session, cfg Config) int {
	var agg ViewerAggregate
	for _, s := range sessions {
		agg.Add(s, cfg)
	}
	return agg.Score()
}

// SummarizeViewer builds the full per-viewer summary for one viewer
// group. Empty input yields a zero summary.
func SummarizeViewer(key string, sessions []*models.Session, cfg Config) models.ViewerSummary {
	summary := models.ViewerSummary{ViewerKey: key}
	if len(sessions) == 0 {
		summary.Intent = models.IntentCold
		return summary
	}

	var agg ViewerAggregate
	for _, s := range sessions {
		agg.Add(s, cfg)

		if s.ViewerEmail != "" {
			summary.Email = s.ViewerEmail
		}
		if s.IPAddress != "" {
			summary.IPAddress = s.IPAddress
		}
		if summary.FirstSeen.IsZero() || s.StartTime.Before(summary.FirstSeen) {
			summary.FirstSeen = s.StartTime
		}
		if s.StartTime.After(summary.LastSeen) {
			summary.LastSeen = s.StartTime
		}
	}

	score := agg.Score()
	summary.Sessions = agg.Sessions
	summary.TotalTime = agg.TotalTime
	summary.Downloads = agg.Downloads
	summary.AvgEngagement = math.Round(agg.AvgEngagement()*10) / 10
	summary.Score = score
	summary.Intent = Intent(score)
	// Hot-lead status at the viewer level always follows the
	// aggregated score, matching the link-level hot-lead count.
	summary.HotLead = score >= HotThreshold
	return summary
}
