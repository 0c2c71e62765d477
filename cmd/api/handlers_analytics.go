package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foliosend/foliosend/internal/middleware"
	"github.com/foliosend/foliosend/pkg/models"
)

func (api *API) getLinkAnalytics(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	analytics, err := api.analytics.GetLinkAnalytics(c.Request.Context(), link)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}

	c.JSON(http.StatusOK, analytics)
}

func (api *API) getLinkViewers(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	viewers, err := api.analytics.GetViewers(c.Request.Context(), link)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute viewers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"viewers": viewers})
}

func (api *API) getLinkHeatmap(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	if link.ContentType != models.ContentTypeDocument {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Heatmaps are only available for documents"})
		return
	}

	heatmap, err := api.analytics.GetHeatmap(c.Request.Context(), link)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute heatmap"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": heatmap})
}

func (api *API) getLinkDropOffs(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	if link.ContentType != models.ContentTypeDocument {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Drop-off analysis is only available for documents"})
		return
	}

	dropOffs, err := api.analytics.GetDropOffs(c.Request.Context(), link)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute drop-offs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": dropOffs})
}

func (api *API) getLinkInsights(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	insights, actions, err := api.analytics.GetInsights(c.Request.Context(), link)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute insights"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insights": insights,
		"actions":  actions,
	})
}

// getLiveViews reads the Redis counters bumped on session start. They
// reset with the cache and are advisory only; the durable numbers live
// in the aggregate snapshot.
func (api *API) getLiveViews(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	if api.cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live counters unavailable"})
		return
	}

	qr, err := api.cache.GetViewCount(c.Request.Context(), link.ID, models.SourceQR)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read counters"})
		return
	}
	direct, err := api.cache.GetViewCount(c.Request.Context(), link.ID, models.SourceDirect)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read counters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qr_scans":      qr,
		"direct_clicks": direct,
		"total":         qr + direct,
	})
}

func (api *API) listContacts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, offset := pagination(c)

	contacts, err := api.repo.ListContacts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contacts": contacts,
		"limit":    limit,
		"offset":   offset,
	})
}

// exportContacts streams the owner's contact list as CSV, hot leads
// first.
func (api *API) exportContacts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	const exportBatch = 1000
	contacts, err := api.repo.ListContacts(c.Request.Context(), userID, exportBatch, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=contacts-%s.csv", time.Now().Format("2006-01-02")))

	w := csv.NewWriter(c.Writer)
	defer w.Flush()

	_ = w.Write([]string{"email", "ip_address", "views", "total_time_seconds", "avg_engagement", "hot_lead", "first_seen", "last_seen"})
	for _, contact := range contacts {
		_ = w.Write([]string{
			contact.Email,
			contact.IPAddress,
			strconv.Itoa(contact.ViewCount),
			strconv.FormatFloat(contact.TotalTime, 'f', 0, 64),
			strconv.FormatFloat(contact.AvgEngagement, 'f', 1, 64),
			strconv.FormatBool(contact.HotLead),
			contact.FirstSeen.Format(time.RFC3339),
			contact.LastSeen.Format(time.RFC3339),
		})
	}
}
