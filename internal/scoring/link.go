package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/foliosend/foliosend/pkg/models"
)

// Performance score blend weights. Documents blend completion into the
// score; track-sites have no pages, so their weight shifts to
// engagement and return rate.
const (
	perfEngagementWeight = 0.5
	perfCompletionWeight = 0.2
	perfReturnWeight     = 0.2
	perfDownloadWeight   = 0.1

	trackSitePerfEngagementWeight = 0.6
	trackSitePerfReturnWeight     = 0.25
	trackSitePerfDownloadWeight   = 0.15
)

// AggregateLink folds all sessions belonging to one link into a single
// performance aggregate. Every ratio shares the one unique-viewer set
// derived from ViewerKey; zero sessions yield an all-zero aggregate,
// never an error.
func AggregateLink(link *models.Link, sessions []*models.Session, cfg Config) *models.LinkAnalytics {
	analytics := &models.LinkAnalytics{
		LinkID:      link.ID,
		ContentType: link.ContentType,
		LastUpdated: time.Now(),
	}
	if len(sessions) == 0 {
		return analytics
	}

	groups := GroupByViewer(sessions)

	var engagementSum float64
	var completionSum float64
	returningSessions := 0

	for _, s := range sessions {
		engagementSum += float64(Score(s, cfg))
		completionSum += completionPercent(s)

		if s.ReturnVisit || s.ReturnVisitCount > 0 {
			returningSessions++
		}
		if s.Downloaded {
			analytics.Downloads++
		}
		if s.Source == models.SourceQR {
			analytics.QRScans++
		} else {
			analytics.DirectClicks++
		}
	}

	// Hot leads count unique viewers by their aggregated score, not
	// hot sessions: one engaged session by an otherwise indifferent
	// viewer should not overstate lead quality, and several moderate
	// sessions should add up.
	hotLeads := 0
	for _, group := range groups {
		if AggregateViewer(group, cfg) >= HotThreshold {
			hotLeads++
		}
	}

	n := float64(len(sessions))
	avgEngagement := engagementSum / n
	completionRate := completionSum / n
	returnRate := float64(returningSessions) / n * 100

	analytics.TotalViews = len(sessions)
	analytics.UniqueViewers = len(groups)
	analytics.HotLeads = hotLeads
	analytics.AvgEngagement = int(avgEngagement)
	analytics.CompletionRate = roundPercent(completionRate)
	analytics.ReturnRate = roundPercent(returnRate)
	analytics.PerformanceScore = performanceScore(link.ContentType, analytics, avgEngagement)
	return analytics
}

// performanceScore blends the aggregate ratios into one 0-100 score
// for the link itself.
func performanceScore(contentType string, a *models.LinkAnalytics, avgEngagement float64) int {
	downloadRate := 0.0
	if a.UniqueViewers > 0 {
		downloadRate = clamp(float64(a.Downloads)/float64(a.UniqueViewers)*100, 0, 100)
	}

	var score float64
	if contentType == models.ContentTypeTrackSite {
		score = avgEngagement*trackSitePerfEngagementWeight +
			float64(a.ReturnRate)*trackSitePerfReturnWeight +
			downloadRate*trackSitePerfDownloadWeight
	} else {
		score = avgEngagement*perfEngagementWeight +
			float64(a.CompletionRate)*perfCompletionWeight +
			float64(a.ReturnRate)*perfReturnWeight +
			downloadRate*perfDownloadWeight
	}
	return int(clamp(math.Round(score), 0, 100))
}

// SummarizeViewers produces the per-viewer summaries for a link's
// sessions, ordered by aggregated score descending, ties broken by
// most recent activity then viewer key for deterministic output.
func SummarizeViewers(sessions []*models.Session, cfg Config) []models.ViewerSummary {
	groups := GroupByViewer(sessions)

	summaries := make([]models.ViewerSummary, 0, len(groups))
	for key, group := range groups {
		summaries = append(summaries, SummarizeViewer(key, group, cfg))
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.ViewerKey < b.ViewerKey
	})
	return summaries
}

// roundPercent rounds a ratio expressed as a percentage to the nearest
// integer and clamps it to [0, 100].
func roundPercent(v float64) int {
	return int(clamp(math.Round(v), 0, 100))
}
