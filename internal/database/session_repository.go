package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/foliosend/foliosend/pkg/models"
)

// Session Repository Methods

const sessionColumns = `
	id, link_id, owner_id, content_type, viewer_email, ip_address, source,
	device_type, browser, os, country, start_time, end_time, duration,
	pages_viewed, max_page_reached, total_pages, completion_percent, exit_page,
	idle_time, tab_switches, scroll_depth, downloaded, printed, copied,
	return_visit, return_visit_count, watch_time, video_duration,
	video_completion_rate, video_finished, engagement_score, intent
`

// CreateSession records a new viewing session
func (r *Repository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			id, link_id, owner_id, content_type, viewer_email, ip_address, source,
			device_type, browser, os, country, start_time, total_pages,
			return_visit, return_visit_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID, session.LinkID, session.OwnerID, session.ContentType,
		session.ViewerEmail, session.IPAddress, session.Source,
		session.DeviceType, session.Browser, session.OS, session.Country,
		session.StartTime, session.TotalPages,
		session.ReturnVisit, session.ReturnVisitCount,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.db.Pool.QueryRow(ctx, query, sessionID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// UpdateSession persists a session's accumulated counters and cached score
func (r *Repository) UpdateSession(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions
		SET end_time = $2, duration = $3, pages_viewed = $4, max_page_reached = $5,
		    completion_percent = $6, exit_page = $7, idle_time = $8, tab_switches = $9,
		    scroll_depth = $10, downloaded = $11, printed = $12, copied = $13,
		    watch_time = $14, video_duration = $15, video_completion_rate = $16,
		    video_finished = $17, engagement_score = $18, intent = $19
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID, session.EndTime, session.Duration, session.PagesViewed,
		session.MaxPageReached, session.CompletionPercent, session.ExitPage,
		session.IdleTime, session.TabSwitches, session.ScrollDepth,
		session.Downloaded, session.Printed, session.Copied,
		session.WatchTime, session.VideoDuration, session.VideoCompletionRate,
		session.VideoFinished, session.EngagementScore, session.Intent,
	)

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// GetLinkSessions retrieves all sessions for one link
func (r *Repository) GetLinkSessions(ctx context.Context, linkID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE link_id = $1 ORDER BY start_time`
	return r.querySessions(ctx, query, linkID)
}

// GetLinkSessionsInRange retrieves a link's sessions within a time window
func (r *Repository) GetLinkSessionsInRange(ctx context.Context, linkID string, start, end time.Time) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE link_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time`
	return r.querySessions(ctx, query, linkID, start, end)
}

// GetOwnerSessions retrieves all sessions across an owner's links
func (r *Repository) GetOwnerSessions(ctx context.Context, ownerID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE owner_id = $1 ORDER BY start_time`
	return r.querySessions(ctx, query, ownerID)
}

// CountPriorSessions counts earlier sessions on a link by the same
// viewer identity, used to set the return-visit counters at session
// start.
func (r *Repository) CountPriorSessions(ctx context.Context, linkID, viewerEmail, ipAddress string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE link_id = $1
		  AND (($2 <> '' AND viewer_email = $2) OR ($2 = '' AND $3 <> '' AND viewer_email = '' AND ip_address = $3))
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, linkID, viewerEmail, ipAddress).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prior sessions: %w", err)
	}

	return count, nil
}

func (r *Repository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*models.Session, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID, &session.LinkID, &session.OwnerID, &session.ContentType,
		&session.ViewerEmail, &session.IPAddress, &session.Source,
		&session.DeviceType, &session.Browser, &session.OS, &session.Country,
		&session.StartTime, &session.EndTime, &session.Duration,
		&session.PagesViewed, &session.MaxPageReached, &session.TotalPages,
		&session.CompletionPercent, &session.ExitPage,
		&session.IdleTime, &session.TabSwitches, &session.ScrollDepth,
		&session.Downloaded, &session.Printed, &session.Copied,
		&session.ReturnVisit, &session.ReturnVisitCount,
		&session.WatchTime, &session.VideoDuration,
		&session.VideoCompletionRate, &session.VideoFinished,
		&session.EngagementScore, &session.Intent,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Page Views

// UpsertPageView accumulates dwell time for one (session, page) pair.
// Repeated reports for the same page add duration, keep the deepest
// scroll, and bump the revisit counter.
func (r *Repository) UpsertPageView(ctx context.Context, pv *models.PageView) error {
	query := `
		INSERT INTO page_views (session_id, link_id, page_number, duration, scroll_depth, revisits)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (session_id, page_number) DO UPDATE
		SET duration = page_views.duration + EXCLUDED.duration,
		    scroll_depth = GREATEST(page_views.scroll_depth, EXCLUDED.scroll_depth),
		    revisits = page_views.revisits + 1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		pv.SessionID, pv.LinkID, pv.PageNumber, pv.Duration, pv.ScrollDepth,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert page view: %w", err)
	}

	return nil
}

// GetLinkPageViews retrieves all page views for a link
func (r *Repository) GetLinkPageViews(ctx context.Context, linkID string) ([]models.PageView, error) {
	query := `
		SELECT session_id, link_id, page_number, duration, scroll_depth, revisits
		FROM page_views
		WHERE link_id = $1
		ORDER BY page_number
	`

	rows, err := r.db.Pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page views: %w", err)
	}
	defer rows.Close()

	var pageViews []models.PageView
	for rows.Next() {
		var pv models.PageView
		err := rows.Scan(&pv.SessionID, &pv.LinkID, &pv.PageNumber, &pv.Duration, &pv.ScrollDepth, &pv.Revisits)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page view: %w", err)
		}
		pageViews = append(pageViews, pv)
	}

	return pageViews, nil
}

// GetSessionPageViews retrieves the page views of one session
func (r *Repository) GetSessionPageViews(ctx context.Context, sessionID string) ([]models.PageView, error) {
	query := `
		SELECT session_id, link_id, page_number, duration, scroll_depth, revisits
		FROM page_views
		WHERE session_id = $1
		ORDER BY page_number
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page views: %w", err)
	}
	defer rows.Close()

	var pageViews []models.PageView
	for rows.Next() {
		var pv models.PageView
		err := rows.Scan(&pv.SessionID, &pv.LinkID, &pv.PageNumber, &pv.Duration, &pv.ScrollDepth, &pv.Revisits)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page view: %w", err)
		}
		pageViews = append(pageViews, pv)
	}

	return pageViews, nil
}
