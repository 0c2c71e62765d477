package scoring

import (
	"fmt"
	"sort"

	"github.com/foliosend/foliosend/pkg/models"
)

// Drop-off thresholds for revise-page actions
const (
	dropOffHighPct   = 30
	dropOffMediumPct = 15
)

// TrendWindow carries the aggregate counters for one time window, used
// to compare the two most recent equal-length windows.
type TrendWindow struct {
	ReturnRate int
	HotLeads   int
}

// GenerateInsights scans a link's aggregates and emits ordered insight
// and action lists. High-priority items come first; within a tier the
// largest deviation wins, with page number as the final tie-break so
// identical input always produces identical output. A link with no
// sessions yields empty lists.
func GenerateInsights(analytics *models.LinkAnalytics, dropOffs []models.PageDropOff, previous, current *TrendWindow) ([]models.Insight, []models.Action) {
	insights := []models.Insight{}
	actions := []models.Action{}

	if analytics == nil || analytics.TotalViews == 0 {
		return insights, actions
	}

	for _, d := range dropOffs {
		if d.Reached == 0 {
			continue
		}
		switch {
		case d.DropOffRate > dropOffHighPct:
			actions = append(actions, revisePageAction(d, models.PriorityHigh))
		case d.DropOffRate >= dropOffMediumPct:
			actions = append(actions, revisePageAction(d, models.PriorityMedium))
		}
	}

	if previous != nil && current != nil {
		if current.ReturnRate > previous.ReturnRate {
			delta := current.ReturnRate - previous.ReturnRate
			insights = append(insights, models.Insight{
				Priority: models.PriorityLow,
				Icon:     "trending-up",
				Label:    "Return rate climbing",
				Reason:   fmt.Sprintf("Return rate rose from %d%% to %d%% over the last two periods", previous.ReturnRate, current.ReturnRate),
				Positive: true,
				Weight:   float64(delta),
			})
		}
		if current.HotLeads > previous.HotLeads {
			delta := current.HotLeads - previous.HotLeads
			insights = append(insights, models.Insight{
				Priority: models.PriorityLow,
				Icon:     "flame",
				Label:    "More hot leads",
				Reason:   fmt.Sprintf("Hot leads rose from %d to %d over the last two periods", previous.HotLeads, current.HotLeads),
				Positive: true,
				Weight:   float64(delta),
			})
		}
	}

	if analytics.AvgEngagement >= HotThreshold {
		insights = append(insights, models.Insight{
			Priority: models.PriorityLow,
			Icon:     "star",
			Label:    "Strong engagement",
			Reason:   fmt.Sprintf("Average engagement is %d, well above the hot threshold", analytics.AvgEngagement),
			Positive: true,
			Weight:   float64(analytics.AvgEngagement),
		})
	}

	// A zero completion rate means no page data was recorded for the
	// link yet, not that nobody read it.
	if analytics.ContentType == models.ContentTypeDocument && analytics.CompletionRate > 0 && analytics.CompletionRate < 30 && analytics.TotalViews >= 5 {
		insights = append(insights, models.Insight{
			Priority: models.PriorityMedium,
			Icon:     "book-open",
			Label:    "Low completion",
			Reason:   fmt.Sprintf("Only %d%% of the document is read on average", analytics.CompletionRate),
			Weight:   float64(30 - analytics.CompletionRate),
		})
	}

	if analytics.HotLeads > 0 {
		actions = append(actions, models.Action{
			Priority: models.PriorityMedium,
			Icon:     "mail",
			Label:    "Follow up with hot leads",
			Reason:   fmt.Sprintf("%d viewers scored as hot leads", analytics.HotLeads),
			Weight:   float64(analytics.HotLeads),
			Buttons: []models.ActionButton{
				{Label: "Export contacts", Icon: "download"},
				{Label: "View leads", Icon: "users"},
			},
		})
	}

	sortInsights(insights)
	sortActions(actions)
	return insights, actions
}

func revisePageAction(d models.PageDropOff, priority string) models.Action {
	return models.Action{
		Priority:   priority,
		Icon:       "edit",
		Label:      fmt.Sprintf("Revise page %d", d.PageNumber),
		Reason:     fmt.Sprintf("%d%% of viewers drop off at page %d", d.DropOffRate, d.PageNumber),
		PageNumber: d.PageNumber,
		Weight:     float64(d.DropOffRate),
		Buttons: []models.ActionButton{
			{Label: "Open page", Icon: "file"},
			{Label: "See heatmap", Icon: "activity"},
		},
	}
}

// priorityRank orders high before medium before low
func priorityRank(p string) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}

func sortInsights(insights []models.Insight) {
	sort.SliceStable(insights, func(i, j int) bool {
		a, b := insights[i], insights[j]
		if ra, rb := priorityRank(a.Priority), priorityRank(b.Priority); ra != rb {
			return ra < rb
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.Label < b.Label
	})
}

func sortActions(actions []models.Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if ra, rb := priorityRank(a.Priority), priorityRank(b.Priority); ra != rb {
			return ra < rb
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.Label < b.Label
	})
}
