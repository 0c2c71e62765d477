package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosend/foliosend/internal/scoring"
	"github.com/foliosend/foliosend/pkg/models"
)

// memoryRepository is an in-memory Repository for service tests
type memoryRepository struct {
	sessions  map[string]*models.Session
	pageViews map[string][]models.PageView
	analytics map[string]*models.LinkAnalytics
	contacts  map[string]*models.Contact
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		sessions:  make(map[string]*models.Session),
		pageViews: make(map[string][]models.PageView),
		analytics: make(map[string]*models.LinkAnalytics),
		contacts:  make(map[string]*models.Contact),
	}
}

func (m *memoryRepository) CreateSession(ctx context.Context, session *models.Session) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memoryRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, assert.AnError
	}
	copied := *session
	return &copied, nil
}

func (m *memoryRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memoryRepository) GetLinkSessions(ctx context.Context, linkID string) ([]*models.Session, error) {
	var out []*models.Session
	for _, session := range m.sessions {
		if session.LinkID == linkID {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryRepository) GetLinkSessionsInRange(ctx context.Context, linkID string, start, end time.Time) ([]*models.Session, error) {
	var out []*models.Session
	for _, session := range m.sessions {
		if session.LinkID == linkID && !session.StartTime.Before(start) && session.StartTime.Before(end) {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryRepository) CountPriorSessions(ctx context.Context, linkID, viewerEmail, ipAddress string) (int, error) {
	count := 0
	for _, session := range m.sessions {
		if session.LinkID != linkID {
			continue
		}
		if viewerEmail != "" && session.ViewerEmail == viewerEmail {
			count++
		} else if viewerEmail == "" && ipAddress != "" && session.ViewerEmail == "" && session.IPAddress == ipAddress {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepository) UpsertPageView(ctx context.Context, pv *models.PageView) error {
	views := m.pageViews[pv.SessionID]
	for i, existing := range views {
		if existing.PageNumber == pv.PageNumber {
			views[i].Duration += pv.Duration
			if pv.ScrollDepth > views[i].ScrollDepth {
				views[i].ScrollDepth = pv.ScrollDepth
			}
			views[i].Revisits++
			return nil
		}
	}
	m.pageViews[pv.SessionID] = append(views, *pv)
	return nil
}

func (m *memoryRepository) GetLinkPageViews(ctx context.Context, linkID string) ([]models.PageView, error) {
	var out []models.PageView
	for _, views := range m.pageViews {
		for _, pv := range views {
			if pv.LinkID == linkID {
				out = append(out, pv)
			}
		}
	}
	return out, nil
}

func (m *memoryRepository) GetSessionPageViews(ctx context.Context, sessionID string) ([]models.PageView, error) {
	return m.pageViews[sessionID], nil
}

func (m *memoryRepository) UpsertLinkAnalytics(ctx context.Context, analytics *models.LinkAnalytics) error {
	copied := *analytics
	m.analytics[analytics.LinkID] = &copied
	return nil
}

func (m *memoryRepository) GetLinkAnalytics(ctx context.Context, linkID string) (*models.LinkAnalytics, error) {
	analytics, ok := m.analytics[linkID]
	if !ok {
		return nil, assert.AnError
	}
	return analytics, nil
}

func (m *memoryRepository) UpsertContact(ctx context.Context, contact *models.Contact) error {
	key := contact.OwnerID + "/" + contact.ViewerKey
	if existing, ok := m.contacts[key]; ok {
		merged := scoring.MergeContacts(*existing, *contact)
		m.contacts[key] = &merged
		return nil
	}
	copied := *contact
	m.contacts[key] = &copied
	return nil
}

func (m *memoryRepository) GetContact(ctx context.Context, ownerID, viewerKey string) (*models.Contact, error) {
	contact, ok := m.contacts[ownerID+"/"+viewerKey]
	if !ok {
		return nil, assert.AnError
	}
	return contact, nil
}

// capturingPublisher records published events
type capturingPublisher struct {
	events []*models.SessionClosedEvent
}

func (p *capturingPublisher) PublishSessionClosed(ctx context.Context, event *models.SessionClosedEvent) error {
	p.events = append(p.events, event)
	return nil
}

// capturingNotifier records webhook notifications
type capturingNotifier struct {
	sessionClosed []*models.SessionClosedEvent
	hotLeads      []*models.Contact
}

func (n *capturingNotifier) NotifySessionClosed(ctx context.Context, event *models.SessionClosedEvent) error {
	n.sessionClosed = append(n.sessionClosed, event)
	return nil
}

func (n *capturingNotifier) NotifyHotLead(ctx context.Context, ownerID string, contact *models.Contact) error {
	n.hotLeads = append(n.hotLeads, contact)
	return nil
}

func testLink() *models.Link {
	return &models.Link{
		ID:          "link-1",
		OwnerID:     "owner-1",
		Slug:        "q3-pitch",
		ContentType: models.ContentTypeDocument,
		TotalPages:  10,
	}
}

func newTestService(repo Repository, pub Publisher, not Notifier) *Service {
	return NewService(repo, nil, pub, not, scoring.DefaultConfig(), time.Minute)
}

func TestStartSessionSetsReturnVisit(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	link := testLink()
	ctx := context.Background()

	first, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, first.ReturnVisit)
	assert.Equal(t, 0, first.ReturnVisitCount)
	assert.Equal(t, models.SourceDirect, first.Source)
	assert.Equal(t, link.TotalPages, first.TotalPages)

	second, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com", Source: models.SourceQR}, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, second.ReturnVisit)
	assert.Equal(t, 1, second.ReturnVisitCount)
	assert.Equal(t, models.SourceQR, second.Source)
}

func TestStartSessionAnonymousKeyedByIP(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	link := testLink()
	ctx := context.Background()

	_, err := service.StartSession(ctx, link, &models.StartSessionRequest{}, "10.0.0.9")
	require.NoError(t, err)

	// Same IP, no email: counted as a return
	second, err := service.StartSession(ctx, link, &models.StartSessionRequest{}, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, second.ReturnVisit)

	// Different IP: a fresh viewer
	third, err := service.StartSession(ctx, link, &models.StartSessionRequest{}, "10.0.0.10")
	require.NoError(t, err)
	assert.False(t, third.ReturnVisit)
}

func TestRecordPageEventAccumulates(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()

	session, err := service.StartSession(ctx, testLink(), &models.StartSessionRequest{}, "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 1, Duration: 10, ScrollDepth: 50}))
	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 1, Duration: 5, ScrollDepth: 90}))
	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 2, Duration: 20, ScrollDepth: 100}))

	views, err := repo.GetSessionPageViews(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 15.0, views[0].Duration)
	assert.Equal(t, 90.0, views[0].ScrollDepth)
	assert.Equal(t, 1, views[0].Revisits)
}

func TestRecordInteraction(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()

	session, err := service.StartSession(ctx, testLink(), &models.StartSessionRequest{}, "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, service.RecordInteraction(ctx, session.ID, models.InteractionDownload))

	stored, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Downloaded)
	assert.False(t, stored.Printed)

	err = service.RecordInteraction(ctx, session.ID, "bookmark")
	assert.Error(t, err)
}

func TestRecordVideoProgressKeepsFurthest(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()

	link := testLink()
	link.ContentType = models.ContentTypeVideo
	session, err := service.StartSession(ctx, link, &models.StartSessionRequest{}, "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, service.RecordVideoProgress(ctx, session.ID, &models.VideoProgressRequest{WatchTime: 60, VideoDuration: 300}))
	require.NoError(t, service.RecordVideoProgress(ctx, session.ID, &models.VideoProgressRequest{WatchTime: 45, VideoDuration: 300}))

	stored, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, stored.WatchTime)
	assert.InDelta(t, 20.0, stored.VideoCompletionRate, 0.01)
}

func TestCloseSessionScoresAndPublishes(t *testing.T) {
	repo := newMemoryRepository()
	pub := &capturingPublisher{}
	service := newTestService(repo, pub, nil)
	ctx := context.Background()

	session, err := service.StartSession(ctx, testLink(), &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 1, Duration: 30, ScrollDepth: 100}))
	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 10, Duration: 40, ScrollDepth: 100}))
	require.NoError(t, service.RecordInteraction(ctx, session.ID, models.InteractionDownload))

	closed, err := service.CloseSession(ctx, session.ID, &models.CloseSessionRequest{IdleTime: 2})
	require.NoError(t, err)

	assert.NotNil(t, closed.EndTime)
	assert.Equal(t, 2, closed.PagesViewed)
	assert.Equal(t, 10, closed.MaxPageReached)
	assert.InDelta(t, 100.0, closed.CompletionPercent, 0.01)
	assert.Greater(t, closed.EngagementScore, 0)
	assert.NotEmpty(t, closed.Intent)

	require.Len(t, pub.events, 1)
	assert.Equal(t, closed.ID, pub.events[0].SessionID)
	assert.Equal(t, "email:anna@example.com", pub.events[0].ViewerKey)

	// Full completion (30) plus a download (20), wall time near zero
	assert.Equal(t, 50, closed.EngagementScore)
	assert.Equal(t, models.IntentWarm, closed.Intent)
	// Downloaded with a mid-range score flags a hot lead
	assert.True(t, pub.events[0].HotLead)
}

func TestCloseSessionLateEmailRekeysViewer(t *testing.T) {
	repo := newMemoryRepository()
	pub := &capturingPublisher{}
	service := newTestService(repo, pub, nil)
	ctx := context.Background()
	link := testLink()

	// Earlier identified session by the same person
	first, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)
	_, err = service.CloseSession(ctx, first.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	// Anonymous session from another network, identified at close
	anon, err := service.StartSession(ctx, link, &models.StartSessionRequest{}, "172.16.0.9")
	require.NoError(t, err)
	require.False(t, anon.ReturnVisit)

	closed, err := service.CloseSession(ctx, anon.ID, &models.CloseSessionRequest{ViewerEmail: "anna@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "anna@example.com", closed.ViewerEmail)
	assert.True(t, closed.ReturnVisit)
	assert.Equal(t, 1, closed.ReturnVisitCount)

	event := pub.events[len(pub.events)-1]
	assert.Equal(t, "email:anna@example.com", event.ViewerKey)
}

func TestCloseSessionIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	pub := &capturingPublisher{}
	service := newTestService(repo, pub, nil)
	ctx := context.Background()

	session, err := service.StartSession(ctx, testLink(), &models.StartSessionRequest{}, "10.0.0.1")
	require.NoError(t, err)

	first, err := service.CloseSession(ctx, session.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	second, err := service.CloseSession(ctx, session.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	assert.Equal(t, first.EngagementScore, second.EngagementScore)
	assert.Len(t, pub.events, 1)

	// Late events against a closed session are rejected
	err = service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 3, Duration: 5})
	assert.Error(t, err)
}

func TestRefreshLinkAnalyticsSkipsOpenSessions(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()
	link := testLink()

	// One closed, one still open
	closedSession, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, service.RecordPageEvent(ctx, closedSession.ID, &models.PageEventRequest{PageNumber: 5, Duration: 60}))
	_, err = service.CloseSession(ctx, closedSession.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	_, err = service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "ben@example.com"}, "10.0.0.2")
	require.NoError(t, err)

	analytics, err := service.RefreshLinkAnalytics(ctx, link, "test")
	require.NoError(t, err)

	assert.Equal(t, 1, analytics.TotalViews)
	assert.Equal(t, 1, analytics.UniqueViewers)

	// Snapshot persisted
	stored, err := repo.GetLinkAnalytics(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, analytics.TotalViews, stored.TotalViews)
}

func TestHandleSessionClosedUpsertsContactAndNotifies(t *testing.T) {
	repo := newMemoryRepository()
	notifier := &capturingNotifier{}
	service := newTestService(repo, nil, notifier)
	ctx := context.Background()
	link := testLink()

	session, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 10, Duration: 120, ScrollDepth: 100}))
	require.NoError(t, service.RecordInteraction(ctx, session.ID, models.InteractionDownload))

	closed, err := service.CloseSession(ctx, session.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	event := &models.SessionClosedEvent{
		SessionID:       closed.ID,
		LinkID:          link.ID,
		OwnerID:         link.OwnerID,
		ViewerKey:       "email:anna@example.com",
		EngagementScore: closed.EngagementScore,
		Intent:          closed.Intent,
		HotLead:         true,
		ClosedAt:        time.Now(),
	}

	require.NoError(t, service.HandleSessionClosed(ctx, event))

	contact, err := repo.GetContact(ctx, link.OwnerID, "email:anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, contact.ViewCount)
	assert.True(t, contact.HotLead)

	require.Len(t, notifier.sessionClosed, 1)
	require.Len(t, notifier.hotLeads, 1)
	assert.Equal(t, "anna@example.com", notifier.hotLeads[0].Email)

	// The refresh is the scheduler's job; handling writes no snapshot
	_, err = repo.GetLinkAnalytics(ctx, link.ID)
	assert.Error(t, err)
}

func TestGetViewersOrderedByScore(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()
	link := testLink()

	// Strong viewer
	strong, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, service.RecordPageEvent(ctx, strong.ID, &models.PageEventRequest{PageNumber: 10, Duration: 150, ScrollDepth: 100}))
	require.NoError(t, service.RecordInteraction(ctx, strong.ID, models.InteractionDownload))
	_, err = service.CloseSession(ctx, strong.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	// Weak viewer
	weak, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "ben@example.com"}, "10.0.0.2")
	require.NoError(t, err)
	require.NoError(t, service.RecordPageEvent(ctx, weak.ID, &models.PageEventRequest{PageNumber: 1, Duration: 4, ScrollDepth: 10}))
	_, err = service.CloseSession(ctx, weak.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	viewers, err := service.GetViewers(ctx, link)
	require.NoError(t, err)
	require.Len(t, viewers, 2)
	assert.Equal(t, "email:anna@example.com", viewers[0].ViewerKey)
	assert.Greater(t, viewers[0].Score, viewers[1].Score)
}

func TestGetHeatmapAndDropOffs(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()
	link := testLink()
	link.TotalPages = 3

	session, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: "anna@example.com"}, "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 1, Duration: 30}))
	require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 2, Duration: 10}))
	_, err = service.CloseSession(ctx, session.ID, &models.CloseSessionRequest{})
	require.NoError(t, err)

	heatmap, err := service.GetHeatmap(ctx, link)
	require.NoError(t, err)
	assert.Len(t, heatmap, 3)
	assert.Equal(t, 30.0, heatmap[0].AvgTime)

	dropOffs, err := service.GetDropOffs(ctx, link)
	require.NoError(t, err)
	require.Len(t, dropOffs, 3)
	// The viewer stopped at page 2
	assert.Equal(t, 100, dropOffs[1].DropOffRate)
}

func TestGetInsightsProducesActions(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, nil, nil)
	ctx := context.Background()
	link := testLink()
	link.TotalPages = 2

	// Several viewers all bail on page 1
	for i, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		session, err := service.StartSession(ctx, link, &models.StartSessionRequest{ViewerEmail: email}, "10.0.0.1")
		require.NoError(t, err)
		require.NoError(t, service.RecordPageEvent(ctx, session.ID, &models.PageEventRequest{PageNumber: 1, Duration: float64(5 + i)}))
		_, err = service.CloseSession(ctx, session.ID, &models.CloseSessionRequest{})
		require.NoError(t, err)
	}

	insights, actions, err := service.GetInsights(ctx, link)
	require.NoError(t, err)

	// A 100% drop-off on page 1 must surface a revise action
	found := false
	for _, action := range actions {
		if action.PageNumber == 1 {
			found = true
		}
	}
	assert.True(t, found, "expected a revise action for page 1, got %v %v", insights, actions)
}
