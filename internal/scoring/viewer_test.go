package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/foliosend/foliosend/pkg/models"
)

func TestViewerKey(t *testing.T) {
	tests := []struct {
		name     string
		session  *models.Session
		expected string
	}{
		{
			name:     "Email wins over IP",
			session:  &models.Session{ID: "s1", ViewerEmail: "ana@example.com", IPAddress: "10.0.0.1"},
			expected: "email:ana@example.com",
		},
		{
			name:     "IP when no email",
			session:  &models.Session{ID: "s2", IPAddress: "10.0.0.1"},
			expected: "ip:10.0.0.1",
		},
		{
			name:     "Anonymous sessions are singleton viewers",
			session:  &models.Session{ID: "s3"},
			expected: "session:s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ViewerKey(tt.session))
		})
	}
}

func TestGroupByViewer(t *testing.T) {
	sessions := []*models.Session{
		{ID: "a", ViewerEmail: "ana@example.com"},
		{ID: "b", ViewerEmail: "ana@example.com", IPAddress: "10.0.0.2"},
		{ID: "c", IPAddress: "10.0.0.3"},
		{ID: "d"},
	}

	groups := GroupByViewer(sessions)
	assert.Len(t, groups, 3)
	assert.Len(t, groups["email:ana@example.com"], 2)
	assert.Len(t, groups["ip:10.0.0.3"], 1)
	assert.Len(t, groups["session:d"], 1)
}

func TestAggregateViewerBestScoreWins(t *testing.T) {
	cfg := DefaultConfig()

	strong := &models.Session{ContentType: models.ContentTypeDocument, Duration: 200, CompletionPercent: 100, Downloaded: true} // 80
	weak := &models.Session{ContentType: models.ContentTypeDocument, Duration: 10}                                              // 2

	// One weak session must not dilute the strong one; the second
	// session adds the frequency bonus instead.
	solo := AggregateViewer([]*models.Session{strong}, cfg)
	both := AggregateViewer([]*models.Session{strong, weak}, cfg)
	assert.Equal(t, 80, solo)
	assert.Equal(t, 85, both)
}

func TestAggregateViewerOrderIndependence(t *testing.T) {
	cfg := DefaultConfig()

	sessions := []*models.Session{
		{ID: "a", ContentType: models.ContentTypeDocument, Duration: 200, CompletionPercent: 100, Downloaded: true},
		{ID: "b", ContentType: models.ContentTypeDocument, Duration: 10, CompletionPercent: 20},
		{ID: "c", ContentType: models.ContentTypeDocument, Duration: 130, CompletionPercent: 100, ReturnVisitCount: 1},
		{ID: "d", ContentType: models.ContentTypeVideo, WatchTime: 100, VideoDuration: 200},
	}

	expected := AggregateViewer(sessions, cfg)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]*models.Session, len(sessions))
		copy(shuffled, sessions)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, expected, AggregateViewer(shuffled, cfg))
	}
}

func TestViewerAggregateIncrementalMatchesRecompute(t *testing.T) {
	cfg := DefaultConfig()

	sessions := []*models.Session{
		{ContentType: models.ContentTypeDocument, Duration: 45, CompletionPercent: 30},
		{ContentType: models.ContentTypeDocument, Duration: 150, CompletionPercent: 80, Downloaded: true},
		{ContentType: models.ContentTypeDocument, Duration: 95, CompletionPercent: 55, ReturnVisitCount: 1},
	}

	// Incrementally maintained totals
	var incremental ViewerAggregate
	for _, s := range sessions {
		incremental.Add(s, cfg)
	}

	// Totals recomputed by hand from per-session scores
	var totalTime, scoreSum float64
	best := 0
	for _, s := range sessions {
		score := Score(s, cfg)
		totalTime += s.Duration
		scoreSum += float64(score)
		if score > best {
			best = score
		}
	}
	// Two repeat sessions add twice the frequency step to the best score
	expectedScore := best + 10

	assert.Equal(t, len(sessions), incremental.Sessions)
	assert.Equal(t, totalTime, incremental.TotalTime)
	assert.Equal(t, 1, incremental.Downloads)
	assert.Equal(t, best, incremental.BestScore)
	assert.Equal(t, expectedScore, incremental.Score())
	assert.InDelta(t, scoreSum/float64(len(sessions)), incremental.AvgEngagement(), 1e-9)
}

func TestViewerAggregateEmpty(t *testing.T) {
	var agg ViewerAggregate
	assert.Equal(t, 0, agg.Score())
	assert.Equal(t, 0.0, agg.AvgEngagement())
}

func TestSummarizeViewer(t *testing.T) {
	cfg := DefaultConfig()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sessions := []*models.Session{
		{
			ID:                "s1",
			ViewerEmail:       "ana@example.com",
			IPAddress:         "10.0.0.9",
			ContentType:       models.ContentTypeDocument,
			Duration:          200,
			CompletionPercent: 100,
			Downloaded:        true,
			StartTime:         base,
		},
		{
			ID:                "s2",
			ViewerEmail:       "ana@example.com",
			ContentType:       models.ContentTypeDocument,
			Duration:          130,
			CompletionPercent: 100,
			ReturnVisitCount:  1,
			StartTime:         base.Add(24 * time.Hour),
		},
	}

	summary := SummarizeViewer("email:ana@example.com", sessions, cfg)

	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, 330.0, summary.TotalTime)
	assert.Equal(t, "ana@example.com", summary.Email)
	assert.Equal(t, 85, summary.Score) // max(80, 70) + one-session frequency bonus
	assert.Equal(t, models.IntentHot, summary.Intent)
	assert.True(t, summary.HotLead)
	assert.Equal(t, 1, summary.Downloads)
	assert.Equal(t, base, summary.FirstSeen)
	assert.Equal(t, base.Add(24*time.Hour), summary.LastSeen)
}

func TestSummarizeViewerEmpty(t *testing.T) {
	summary := SummarizeViewer("email:none@example.com", nil, DefaultConfig())
	assert.Equal(t, 0, summary.Sessions)
	assert.Equal(t, 0, summary.Score)
	assert.Equal(t, models.IntentCold, summary.Intent)
	assert.False(t, summary.HotLead)
}
