package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foliosend/foliosend/pkg/models"
)

// Link analytics persistence. One row per link, replaced wholesale on
// every aggregate refresh.

// UpsertLinkAnalytics stores the latest aggregate snapshot for a link
func (r *Repository) UpsertLinkAnalytics(ctx context.Context, analytics *models.LinkAnalytics) error {
	query := `
		INSERT INTO link_analytics (
			link_id, content_type, performance_score, total_views, unique_viewers,
			hot_leads, avg_engagement, completion_rate, return_rate,
			qr_scans, direct_clicks, downloads, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (link_id) DO UPDATE
		SET content_type = EXCLUDED.content_type,
		    performance_score = EXCLUDED.performance_score,
		    total_views = EXCLUDED.total_views,
		    unique_viewers = EXCLUDED.unique_viewers,
		    hot_leads = EXCLUDED.hot_leads,
		    avg_engagement = EXCLUDED.avg_engagement,
		    completion_rate = EXCLUDED.completion_rate,
		    return_rate = EXCLUDED.return_rate,
		    qr_scans = EXCLUDED.qr_scans,
		    direct_clicks = EXCLUDED.direct_clicks,
		    downloads = EXCLUDED.downloads,
		    last_updated = EXCLUDED.last_updated
	`

	_, err := r.db.Pool.Exec(ctx, query,
		analytics.LinkID, analytics.ContentType, analytics.PerformanceScore,
		analytics.TotalViews, analytics.UniqueViewers, analytics.HotLeads,
		analytics.AvgEngagement, analytics.CompletionRate, analytics.ReturnRate,
		analytics.QRScans, analytics.DirectClicks, analytics.Downloads,
		analytics.LastUpdated,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert link analytics: %w", err)
	}

	return nil
}

// GetLinkAnalytics retrieves the stored aggregate snapshot for a link
func (r *Repository) GetLinkAnalytics(ctx context.Context, linkID string) (*models.LinkAnalytics, error) {
	query := `
		SELECT link_id, content_type, performance_score, total_views, unique_viewers,
		       hot_leads, avg_engagement, completion_rate, return_rate,
		       qr_scans, direct_clicks, downloads, last_updated
		FROM link_analytics
		WHERE link_id = $1
	`

	var analytics models.LinkAnalytics
	err := r.db.Pool.QueryRow(ctx, query, linkID).Scan(
		&analytics.LinkID, &analytics.ContentType, &analytics.PerformanceScore,
		&analytics.TotalViews, &analytics.UniqueViewers, &analytics.HotLeads,
		&analytics.AvgEngagement, &analytics.CompletionRate, &analytics.ReturnRate,
		&analytics.QRScans, &analytics.DirectClicks, &analytics.Downloads,
		&analytics.LastUpdated,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("analytics not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link analytics: %w", err)
	}

	return &analytics, nil
}
