package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/foliosend/foliosend/internal/cache"
	"github.com/foliosend/foliosend/internal/metrics"
	"github.com/foliosend/foliosend/internal/scoring"
	"github.com/foliosend/foliosend/internal/tracing"
	"github.com/foliosend/foliosend/pkg/models"
)

// Repository defines the persistence operations the service needs
type Repository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	GetLinkSessions(ctx context.Context, linkID string) ([]*models.Session, error)
	GetLinkSessionsInRange(ctx context.Context, linkID string, start, end time.Time) ([]*models.Session, error)
	CountPriorSessions(ctx context.Context, linkID, viewerEmail, ipAddress string) (int, error)
	UpsertPageView(ctx context.Context, pv *models.PageView) error
	GetLinkPageViews(ctx context.Context, linkID string) ([]models.PageView, error)
	GetSessionPageViews(ctx context.Context, sessionID string) ([]models.PageView, error)
	UpsertLinkAnalytics(ctx context.Context, analytics *models.LinkAnalytics) error
	GetLinkAnalytics(ctx context.Context, linkID string) (*models.LinkAnalytics, error)
	UpsertContact(ctx context.Context, contact *models.Contact) error
	GetContact(ctx context.Context, ownerID, viewerKey string) (*models.Contact, error)
}

// Publisher defines the queue operations the service needs
type Publisher interface {
	PublishSessionClosed(ctx context.Context, event *models.SessionClosedEvent) error
}

// Notifier defines the webhook operations the worker path needs
type Notifier interface {
	NotifySessionClosed(ctx context.Context, event *models.SessionClosedEvent) error
	NotifyHotLead(ctx context.Context, ownerID string, contact *models.Contact) error
}

// Service orchestrates tracking ingest, scoring, and aggregation
type Service struct {
	repo      Repository
	cache     *cache.Cache
	publisher Publisher
	notifier  Notifier
	cfg       scoring.Config
	ttl       time.Duration
}

// NewService creates a new analytics service. Cache, publisher, and
// notifier may be nil; the service degrades to synchronous, uncached
// operation without them.
func NewService(repo Repository, c *cache.Cache, publisher Publisher, notifier Notifier, cfg scoring.Config, ttl time.Duration) *Service {
	return &Service{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		ttl:       ttl,
	}
}

// Tracking ingest

// StartSession opens a viewing session for a link
func (s *Service) StartSession(ctx context.Context, link *models.Link, req *models.StartSessionRequest, ipAddress string) (*models.Session, error) {
	span, ctx := tracing.StartSpan(ctx, "analytics.StartSession")
	defer tracing.FinishSpan(span)
	tracing.TagLink(span, link.ID)

	source := req.Source
	if source != models.SourceQR {
		source = models.SourceDirect
	}

	prior, err := s.repo.CountPriorSessions(ctx, link.ID, req.ViewerEmail, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior sessions: %w", err)
	}

	session := &models.Session{
		ID:               uuid.New().String(),
		LinkID:           link.ID,
		OwnerID:          link.OwnerID,
		ContentType:      link.ContentType,
		ViewerEmail:      req.ViewerEmail,
		IPAddress:        ipAddress,
		Source:           source,
		DeviceType:       req.DeviceType,
		Browser:          req.Browser,
		OS:               req.OS,
		Country:          req.Country,
		StartTime:        time.Now(),
		TotalPages:       link.TotalPages,
		ReturnVisit:      prior > 0,
		ReturnVisitCount: prior,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.IncrementViewCount(ctx, link.ID, source); err != nil {
			log.Warn().Err(err).Str("link_id", link.ID).Msg("Failed to bump live view counter")
		}
	}

	metrics.RecordSessionStarted(link.ContentType, source)
	return session, nil
}

// RecordPageEvent accumulates dwell time for one page of a session
func (s *Service) RecordPageEvent(ctx context.Context, sessionID string, req *models.PageEventRequest) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.EndTime != nil {
		return fmt.Errorf("session already closed")
	}

	pv := &models.PageView{
		SessionID:   session.ID,
		LinkID:      session.LinkID,
		PageNumber:  req.PageNumber,
		Duration:    req.Duration,
		ScrollDepth: req.ScrollDepth,
	}

	if err := s.repo.UpsertPageView(ctx, pv); err != nil {
		return err
	}

	metrics.RecordTrackingEvent("page")
	return nil
}

// RecordInteraction flags a viewer action on the session
func (s *Service) RecordInteraction(ctx context.Context, sessionID, interactionType string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.EndTime != nil {
		return fmt.Errorf("session already closed")
	}

	switch interactionType {
	case models.InteractionDownload:
		session.Downloaded = true
	case models.InteractionPrint:
		session.Printed = true
	case models.InteractionCopy:
		session.Copied = true
	default:
		return fmt.Errorf("unknown interaction type: %s", interactionType)
	}

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}

	metrics.RecordTrackingEvent(interactionType)
	return nil
}

// RecordVideoProgress updates watch progress for video content
func (s *Service) RecordVideoProgress(ctx context.Context, sessionID string, req *models.VideoProgressRequest) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.EndTime != nil {
		return fmt.Errorf("session already closed")
	}

	// Progress reports are cumulative; keep the furthest one
	if req.WatchTime > session.WatchTime {
		session.WatchTime = req.WatchTime
	}
	if req.VideoDuration > 0 {
		session.VideoDuration = req.VideoDuration
	}
	if session.VideoDuration > 0 {
		session.VideoCompletionRate = session.WatchTime / session.VideoDuration * 100
		if session.VideoCompletionRate > 100 {
			session.VideoCompletionRate = 100
		}
	}
	if req.Finished {
		session.VideoFinished = true
	}

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}

	metrics.RecordTrackingEvent("video_progress")
	return nil
}

// CloseSession finalizes a session: folds in the per-page telemetry,
// computes the engagement score and intent, and hands the session to
// the worker pipeline.
func (s *Service) CloseSession(ctx context.Context, sessionID string, req *models.CloseSessionRequest) (*models.Session, error) {
	span, ctx := tracing.StartSpan(ctx, "analytics.CloseSession")
	defer tracing.FinishSpan(span)
	tracing.TagSession(span, sessionID)

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.EndTime != nil {
		// Closing twice is a no-op; return the stored result
		return session, nil
	}

	now := time.Now()
	session.EndTime = &now
	session.Duration = now.Sub(session.StartTime).Seconds()
	session.IdleTime = req.IdleTime
	session.TabSwitches = req.TabSwitches

	// An identity captured mid-session re-keys the viewer from IP to
	// email; prior sessions under that email now count as returns.
	if req.ViewerEmail != "" && session.ViewerEmail == "" {
		session.ViewerEmail = req.ViewerEmail
		prior, err := s.repo.CountPriorSessions(ctx, session.LinkID, session.ViewerEmail, session.IPAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to recount prior sessions: %w", err)
		}
		if prior > session.ReturnVisitCount {
			session.ReturnVisit = true
			session.ReturnVisitCount = prior
		}
	}

	pageViews, err := s.repo.GetSessionPageViews(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	foldPageViews(session, pageViews)

	session.EngagementScore = scoring.Score(session, s.cfg)
	session.Intent = scoring.Intent(session.EngagementScore)

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	hotLead := scoring.IsHotLead(session.EngagementScore, session.Downloaded, session.ReturnVisitCount)

	event := &models.SessionClosedEvent{
		SessionID:       session.ID,
		LinkID:          session.LinkID,
		OwnerID:         session.OwnerID,
		ViewerKey:       scoring.ViewerKey(session),
		EngagementScore: session.EngagementScore,
		Intent:          session.Intent,
		HotLead:         hotLead,
		ClosedAt:        now,
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSessionClosed(ctx, event); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to publish session-close event")
		}
	}

	s.invalidateLink(ctx, session.LinkID)

	metrics.RecordSessionClosed(session.ContentType, session.Intent, session.Duration, session.EngagementScore, hotLead)
	return session, nil
}

// foldPageViews derives the session's document-progress counters from
// its accumulated page views.
func foldPageViews(session *models.Session, pageViews []models.PageView) {
	if len(pageViews) == 0 {
		return
	}

	maxPage := 0
	maxScroll := 0.0
	for _, pv := range pageViews {
		if pv.PageNumber > maxPage {
			maxPage = pv.PageNumber
		}
		if pv.ScrollDepth > maxScroll {
			maxScroll = pv.ScrollDepth
		}
	}

	session.PagesViewed = len(pageViews)
	session.MaxPageReached = maxPage
	session.ScrollDepth = maxScroll
	if session.TotalPages > 0 {
		session.CompletionPercent = float64(maxPage) / float64(session.TotalPages) * 100
		if session.CompletionPercent > 100 {
			session.CompletionPercent = 100
		}
	}
	if session.ExitPage == 0 {
		session.ExitPage = maxPage
	}
}

// Aggregate reads

// GetLinkAnalytics returns a link's aggregate snapshot, computing and
// caching it when the cached copy is missing.
func (s *Service) GetLinkAnalytics(ctx context.Context, link *models.Link) (*models.LinkAnalytics, error) {
	if s.cache != nil {
		cached, err := s.cache.GetLinkAnalytics(ctx, link.ID)
		if err != nil {
			log.Warn().Err(err).Str("link_id", link.ID).Msg("Analytics cache read failed")
		}
		metrics.RecordCacheAccess("analytics", cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	return s.RefreshLinkAnalytics(ctx, link, "on_demand")
}

// RefreshLinkAnalytics recomputes a link's aggregates from its sessions
// and stores the snapshot in the database and cache.
func (s *Service) RefreshLinkAnalytics(ctx context.Context, link *models.Link, trigger string) (*models.LinkAnalytics, error) {
	span, ctx := tracing.StartSpan(ctx, "analytics.RefreshLinkAnalytics")
	defer tracing.FinishSpan(span)
	tracing.TagLink(span, link.ID)

	start := time.Now()

	sessions, err := s.repo.GetLinkSessions(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	analytics := scoring.AggregateLink(link, closedOnly(sessions), s.cfg)

	if err := s.repo.UpsertLinkAnalytics(ctx, analytics); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetLinkAnalytics(ctx, analytics, s.ttl); err != nil {
			log.Warn().Err(err).Str("link_id", link.ID).Msg("Analytics cache write failed")
		}
	}

	metrics.RecordAggregateRefresh(trigger, time.Since(start).Seconds())
	return analytics, nil
}

// GetViewers returns the per-viewer breakdown for a link, hottest first
func (s *Service) GetViewers(ctx context.Context, link *models.Link) ([]models.ViewerSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetViewerSummaries(ctx, link.ID)
		if err != nil {
			log.Warn().Err(err).Str("link_id", link.ID).Msg("Viewer cache read failed")
		}
		metrics.RecordCacheAccess("viewers", cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	sessions, err := s.repo.GetLinkSessions(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	viewers := scoring.SummarizeViewers(closedOnly(sessions), s.cfg)

	if s.cache != nil {
		if err := s.cache.SetViewerSummaries(ctx, link.ID, viewers, s.ttl); err != nil {
			log.Warn().Err(err).Str("link_id", link.ID).Msg("Viewer cache write failed")
		}
	}

	return viewers, nil
}

// GetHeatmap returns per-page attention tiers for a document link
func (s *Service) GetHeatmap(ctx context.Context, link *models.Link) ([]models.PageStats, error) {
	pageViews, err := s.repo.GetLinkPageViews(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	return scoring.PageHeatmap(pageViews, link.TotalPages), nil
}

// GetDropOffs returns per-page drop-off rates for a document link
func (s *Service) GetDropOffs(ctx context.Context, link *models.Link) ([]models.PageDropOff, error) {
	sessions, err := s.repo.GetLinkSessions(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	return scoring.PageDropOff(closedOnly(sessions), link.TotalPages), nil
}

// GetInsights derives observations and suggested follow-ups for a link.
// The trend compares the last seven days against the seven before.
func (s *Service) GetInsights(ctx context.Context, link *models.Link) ([]models.Insight, []models.Action, error) {
	analytics, err := s.GetLinkAnalytics(ctx, link)
	if err != nil {
		return nil, nil, err
	}

	dropOffs, err := s.GetDropOffs(ctx, link)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	current, err := s.trendWindow(ctx, link, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, nil, err
	}
	previous, err := s.trendWindow(ctx, link, now.AddDate(0, 0, -14), now.AddDate(0, 0, -7))
	if err != nil {
		return nil, nil, err
	}

	insights, actions := scoring.GenerateInsights(analytics, dropOffs, previous, current)
	return insights, actions, nil
}

func (s *Service) trendWindow(ctx context.Context, link *models.Link, start, end time.Time) (*scoring.TrendWindow, error) {
	sessions, err := s.repo.GetLinkSessionsInRange(ctx, link.ID, start, end)
	if err != nil {
		return nil, err
	}

	closed := closedOnly(sessions)
	if len(closed) == 0 {
		return nil, nil
	}

	window := &scoring.TrendWindow{}
	returning := 0
	viewerHot := make(map[string]bool)
	for _, session := range closed {
		if session.ReturnVisit {
			returning++
		}
		score := scoring.Score(session, s.cfg)
		if scoring.IsHotLead(score, session.Downloaded, session.ReturnVisitCount) {
			viewerHot[scoring.ViewerKey(session)] = true
		}
	}
	window.ReturnRate = returning * 100 / len(closed)
	window.HotLeads = len(viewerHot)
	return window, nil
}

// Worker path

// HandleSessionClosed is the worker entry for a session-close event:
// contact upsert and webhooks. The link's aggregate refresh goes
// through the scheduler so concurrent events for one link dedupe into
// a single recompute.
func (s *Service) HandleSessionClosed(ctx context.Context, event *models.SessionClosedEvent) error {
	session, err := s.repo.GetSession(ctx, event.SessionID)
	if err != nil {
		return err
	}

	contact := scoring.ContactFromSession(session, s.cfg)
	contact.ID = uuid.New().String()
	contact.HotLead = event.HotLead

	if err := s.repo.UpsertContact(ctx, &contact); err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifySessionClosed(ctx, event); err != nil {
			log.Error().Err(err).Str("session_id", event.SessionID).Msg("Session-closed webhook failed")
		}

		if event.HotLead {
			merged, err := s.repo.GetContact(ctx, event.OwnerID, event.ViewerKey)
			if err == nil && merged != nil {
				if err := s.notifier.NotifyHotLead(ctx, event.OwnerID, merged); err != nil {
					log.Error().Err(err).Str("viewer_key", event.ViewerKey).Msg("Hot-lead webhook failed")
				}
			}
		}
	}

	return nil
}

// invalidateLink drops a link's cached aggregates
func (s *Service) invalidateLink(ctx context.Context, linkID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteLinkAnalytics(ctx, linkID); err != nil {
		log.Warn().Err(err).Str("link_id", linkID).Msg("Failed to invalidate analytics cache")
	}
	if err := s.cache.DeleteViewerSummaries(ctx, linkID); err != nil {
		log.Warn().Err(err).Str("link_id", linkID).Msg("Failed to invalidate viewer cache")
	}
}

// closedOnly filters out sessions still in flight; open sessions carry
// no score yet and would drag every aggregate down.
func closedOnly(sessions []*models.Session) []*models.Session {
	out := make([]*models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.EndTime != nil {
			out = append(out, session)
		}
	}
	return out
}
