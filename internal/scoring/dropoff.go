package scoring

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/foliosend/foliosend/pkg/models"
)

// PageHeatmap aggregates page views into per-page average time, view
// count, and a heat tier. Heat is banded by quartiles over the link's
// own page-average distribution, so the map stays meaningful whatever
// the document's length or genre. Empty input yields an empty slice.
func PageHeatmap(pageViews []models.PageView, totalPages int) []models.PageStats {
	if totalPages <= 0 || len(pageViews) == 0 {
		return []models.PageStats{}
	}

	type pageAccum struct {
		total float64
		views int
	}
	accum := make(map[int]*pageAccum)

	for _, pv := range pageViews {
		if pv.PageNumber < 1 || pv.PageNumber > totalPages {
			log.Debug().Int("page", pv.PageNumber).Int("total_pages", totalPages).Msg("Skipped out-of-range page view")
			continue
		}
		a := accum[pv.PageNumber]
		if a == nil {
			a = &pageAccum{}
			accum[pv.PageNumber] = a
		}
		a.total += sanitize(pv.Duration, "page_duration")
		a.views++
	}

	stats := make([]models.PageStats, 0, totalPages)
	avgTimes := make([]float64, 0, len(accum))
	for page := 1; page <= totalPages; page++ {
		s := models.PageStats{PageNumber: page}
		if a, ok := accum[page]; ok && a.views > 0 {
			s.AvgTime = a.total / float64(a.views)
			s.Views = a.views
			avgTimes = append(avgTimes, s.AvgTime)
		}
		stats = append(stats, s)
	}

	q25, q50, q75 := quartiles(avgTimes)
	for i := range stats {
		stats[i].Heat = heatTier(stats[i].AvgTime, q25, q50, q75)
	}
	return stats
}

// heatTier bands an average time against the link's own quartiles.
// With a degenerate distribution (all pages equal) every page lands in
// the same tier.
func heatTier(avgTime, q25, q50, q75 float64) string {
	switch {
	case avgTime >= q75:
		return models.HeatHot
	case avgTime >= q50:
		return models.HeatMedium
	case avgTime >= q25:
		return models.HeatCool
	default:
		return models.HeatCold
	}
}

// quartiles returns the 25th, 50th, and 75th percentile of the values
// using nearest-rank interpolation.
func quartiles(values []float64) (q25, q50, q75 float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentile(sorted, 0.25), percentile(sorted, 0.50), percentile(sorted, 0.75)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// PageDropOff computes the per-page drop-off rate from each viewer's
// max page reached. Revisited pages do not count as retention; only
// how far each unique viewer got matters. The final page drops to
// nowhere, so its rate is 0. Empty input yields an empty slice.
func PageDropOff(sessions []*models.Session, totalPages int) []models.PageDropOff {
	if totalPages <= 0 || len(sessions) == 0 {
		return []models.PageDropOff{}
	}

	// Max page reached per unique viewer, grouped by the canonical
	// viewer key.
	viewerMax := make(map[string]int)
	for _, s := range sessions {
		key := ViewerKey(s)
		maxPage := s.MaxPageReached
		if maxPage < 0 {
			maxPage = 0
		}
		if maxPage > totalPages {
			maxPage = totalPages
		}
		if maxPage > viewerMax[key] {
			viewerMax[key] = maxPage
		}
	}

	// reached[p] = viewers whose max page is >= p
	reached := make([]int, totalPages+2)
	for _, maxPage := range viewerMax {
		for p := 1; p <= maxPage; p++ {
			reached[p]++
		}
	}

	dropOffs := make([]models.PageDropOff, 0, totalPages)
	for page := 1; page <= totalPages; page++ {
		d := models.PageDropOff{PageNumber: page, Reached: reached[page]}
		if page < totalPages && reached[page] > 0 {
			d.DropOffCount = reached[page] - reached[page+1]
			d.DropOffRate = roundPercent(float64(d.DropOffCount) / float64(reached[page]) * 100)
		}
		dropOffs = append(dropOffs, d)
	}
	return dropOffs
}
