package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/foliosend/foliosend/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if cache == nil {
		t.Fatal("Cache should not be nil")
	}

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_LinkOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	link := &models.Link{
		ID:          "test-link-1",
		OwnerID:     "owner-1",
		Slug:        "q3-pitch",
		Title:       "Q3 Pitch Deck",
		ContentType: models.ContentTypeDocument,
		TotalPages:  12,
	}

	err := cache.SetLink(ctx, link, 5*time.Minute)
	if err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}

	retrieved, err := cache.GetLink(ctx, link.Slug)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved link should not be nil")
	}

	if retrieved.ID != link.ID {
		t.Errorf("Expected ID %s, got %s", link.ID, retrieved.ID)
	}

	if retrieved.Slug != link.Slug {
		t.Errorf("Expected slug %s, got %s", link.Slug, retrieved.Slug)
	}

	// Cache miss returns nil, nil
	nonExistent, err := cache.GetLink(ctx, "non-existent")
	if err != nil {
		t.Fatalf("GetLink for non-existent should not error: %v", err)
	}
	if nonExistent != nil {
		t.Error("Non-existent link should be nil")
	}

	// Delete then miss
	if err := cache.DeleteLink(ctx, link.Slug); err != nil {
		t.Fatalf("DeleteLink failed: %v", err)
	}

	deleted, err := cache.GetLink(ctx, link.Slug)
	if err != nil {
		t.Fatalf("GetLink after delete failed: %v", err)
	}
	if deleted != nil {
		t.Error("Deleted link should be nil")
	}
}

func TestCache_AnalyticsOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	analytics := &models.LinkAnalytics{
		LinkID:           "test-link-1",
		ContentType:      models.ContentTypeDocument,
		PerformanceScore: 74,
		TotalViews:       3,
		UniqueViewers:    2,
		HotLeads:         1,
		AvgEngagement:    52,
		CompletionRate:   73,
		ReturnRate:       33,
		LastUpdated:      time.Now().UTC().Truncate(time.Second),
	}

	err := cache.SetLinkAnalytics(ctx, analytics, time.Minute)
	if err != nil {
		t.Fatalf("SetLinkAnalytics failed: %v", err)
	}

	retrieved, err := cache.GetLinkAnalytics(ctx, analytics.LinkID)
	if err != nil {
		t.Fatalf("GetLinkAnalytics failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved analytics should not be nil")
	}

	if retrieved.HotLeads != analytics.HotLeads {
		t.Errorf("Expected hot leads %d, got %d", analytics.HotLeads, retrieved.HotLeads)
	}

	if retrieved.AvgEngagement != analytics.AvgEngagement {
		t.Errorf("Expected avg engagement %d, got %d", analytics.AvgEngagement, retrieved.AvgEngagement)
	}

	// Invalidation clears the snapshot
	if err := cache.DeleteLinkAnalytics(ctx, analytics.LinkID); err != nil {
		t.Fatalf("DeleteLinkAnalytics failed: %v", err)
	}

	miss, err := cache.GetLinkAnalytics(ctx, analytics.LinkID)
	if err != nil {
		t.Fatalf("GetLinkAnalytics after delete failed: %v", err)
	}
	if miss != nil {
		t.Error("Invalidated analytics should be nil")
	}
}

func TestCache_AnalyticsTTLExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	analytics := &models.LinkAnalytics{LinkID: "ttl-link", TotalViews: 5}
	if err := cache.SetLinkAnalytics(ctx, analytics, time.Minute); err != nil {
		t.Fatalf("SetLinkAnalytics failed: %v", err)
	}

	// miniredis advances expiry manually
	mr.FastForward(2 * time.Minute)

	retrieved, err := cache.GetLinkAnalytics(ctx, analytics.LinkID)
	if err != nil {
		t.Fatalf("GetLinkAnalytics failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expired analytics should be nil")
	}
}

func TestCache_ViewerSummaries(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	viewers := []models.ViewerSummary{
		{ViewerKey: "email:anna@example.com", Score: 85, Intent: models.IntentHot, HotLead: true},
		{ViewerKey: "ip:10.0.0.5", Score: 40, Intent: models.IntentWarm},
	}

	if err := cache.SetViewerSummaries(ctx, "link-1", viewers, time.Minute); err != nil {
		t.Fatalf("SetViewerSummaries failed: %v", err)
	}

	retrieved, err := cache.GetViewerSummaries(ctx, "link-1")
	if err != nil {
		t.Fatalf("GetViewerSummaries failed: %v", err)
	}

	if len(retrieved) != 2 {
		t.Fatalf("Expected 2 viewers, got %d", len(retrieved))
	}

	if retrieved[0].ViewerKey != viewers[0].ViewerKey {
		t.Errorf("Expected viewer key %s, got %s", viewers[0].ViewerKey, retrieved[0].ViewerKey)
	}

	if !retrieved[0].HotLead {
		t.Error("First viewer should stay a hot lead through the cache")
	}

	miss, err := cache.GetViewerSummaries(ctx, "other-link")
	if err != nil {
		t.Fatalf("GetViewerSummaries miss should not error: %v", err)
	}
	if miss != nil {
		t.Error("Miss should return nil slice")
	}
}

func TestCache_ViewCounters(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cache.IncrementViewCount(ctx, "link-1", models.SourceQR); err != nil {
			t.Fatalf("IncrementViewCount failed: %v", err)
		}
	}
	if err := cache.IncrementViewCount(ctx, "link-1", models.SourceDirect); err != nil {
		t.Fatalf("IncrementViewCount failed: %v", err)
	}

	qr, err := cache.GetViewCount(ctx, "link-1", models.SourceQR)
	if err != nil {
		t.Fatalf("GetViewCount failed: %v", err)
	}
	if qr != 3 {
		t.Errorf("Expected 3 QR views, got %d", qr)
	}

	direct, err := cache.GetViewCount(ctx, "link-1", models.SourceDirect)
	if err != nil {
		t.Fatalf("GetViewCount failed: %v", err)
	}
	if direct != 1 {
		t.Errorf("Expected 1 direct view, got %d", direct)
	}

	// Counter that was never touched reads zero
	none, err := cache.GetViewCount(ctx, "link-2", models.SourceQR)
	if err != nil {
		t.Fatalf("GetViewCount for untouched counter failed: %v", err)
	}
	if none != 0 {
		t.Errorf("Expected 0 views, got %d", none)
	}
}

func TestCache_RateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// First requests within the limit pass
	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "ingest:1.2.3.4", 3, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}
		if !allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// Next request exceeds
	allowed, err := cache.CheckRateLimit(ctx, "ingest:1.2.3.4", 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if allowed {
		t.Error("Fourth request should be rejected")
	}

	// Window expiry resets the counter
	mr.FastForward(2 * time.Minute)

	allowed, err = cache.CheckRateLimit(ctx, "ingest:1.2.3.4", 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if !allowed {
		t.Error("Request after window reset should be allowed")
	}
}

func TestCache_Locking(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	acquired, err := cache.AcquireLock(ctx, "refresh:link-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("First acquire should succeed")
	}

	// Second acquire on the same resource is refused
	again, err := cache.AcquireLock(ctx, "refresh:link-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if again {
		t.Error("Second acquire should fail while lock is held")
	}

	if err := cache.ReleaseLock(ctx, "refresh:link-1"); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	released, err := cache.AcquireLock(ctx, "refresh:link-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !released {
		t.Error("Acquire after release should succeed")
	}
}

func TestCache_DeletePattern(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	analytics := &models.LinkAnalytics{LinkID: "link-1"}
	if err := cache.SetLinkAnalytics(ctx, analytics, time.Minute); err != nil {
		t.Fatalf("SetLinkAnalytics failed: %v", err)
	}
	viewers := []models.ViewerSummary{{ViewerKey: "email:anna@example.com"}}
	if err := cache.SetViewerSummaries(ctx, "link-1", viewers, time.Minute); err != nil {
		t.Fatalf("SetViewerSummaries failed: %v", err)
	}

	if err := cache.DeletePattern(ctx, "analytics:*"); err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}

	gone, err := cache.GetLinkAnalytics(ctx, "link-1")
	if err != nil {
		t.Fatalf("GetLinkAnalytics failed: %v", err)
	}
	if gone != nil {
		t.Error("Analytics should be gone after pattern delete")
	}

	kept, err := cache.GetViewerSummaries(ctx, "link-1")
	if err != nil {
		t.Fatalf("GetViewerSummaries failed: %v", err)
	}
	if len(kept) != 1 {
		t.Error("Viewer summaries should survive analytics pattern delete")
	}
}
