package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foliosend/foliosend/pkg/models"
)

const linkCacheTTL = 5 * time.Minute

// Global cap on new sessions per link per minute, shared across API
// replicas through Redis. The per-client x/time/rate middleware cannot
// stop a distributed scrape on its own.
const linkSessionsPerMinute = 600

// resolveLink is what the viewer page loads first: link metadata plus a
// presigned file URL, or a redirect target for track-sites.
func (api *API) resolveLink(c *gin.Context) {
	link, ok := api.linkBySlug(c)
	if !ok {
		return
	}

	if link.ContentType == models.ContentTypeTrackSite {
		c.JSON(http.StatusOK, gin.H{
			"link":       publicLink(link),
			"target_url": link.TargetURL,
		})
		return
	}

	resp := gin.H{"link": publicLink(link)}
	if link.ObjectKey != "" {
		url, err := api.storage.GetURL(c.Request.Context(), link.ObjectKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate file URL"})
			return
		}
		resp["file_url"] = url
	}

	c.JSON(http.StatusOK, resp)
}

func (api *API) startSession(c *gin.Context) {
	link, ok := api.linkBySlug(c)
	if !ok {
		return
	}

	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if api.cache != nil {
		allowed, err := api.cache.CheckRateLimit(c.Request.Context(), "sessions:"+link.ID, linkSessionsPerMinute, time.Minute)
		if err == nil && !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many sessions for this link, slow down"})
			return
		}
	}

	session, err := api.analytics.StartSession(c.Request.Context(), link, &req, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": session.ID})
}

func (api *API) recordPageEvent(c *gin.Context) {
	if _, ok := api.linkBySlug(c); !ok {
		return
	}

	var req models.PageEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.analytics.RecordPageEvent(c.Request.Context(), c.Param("session_id"), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

func (api *API) recordInteraction(c *gin.Context) {
	if _, ok := api.linkBySlug(c); !ok {
		return
	}

	var req models.InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.analytics.RecordInteraction(c.Request.Context(), c.Param("session_id"), req.Type); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

func (api *API) recordVideoProgress(c *gin.Context) {
	if _, ok := api.linkBySlug(c); !ok {
		return
	}

	var req models.VideoProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.analytics.RecordVideoProgress(c.Request.Context(), c.Param("session_id"), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

func (api *API) closeSession(c *gin.Context) {
	if _, ok := api.linkBySlug(c); !ok {
		return
	}

	// The close beacon often fires with an empty body
	var req models.CloseSessionRequest
	_ = c.ShouldBindJSON(&req)

	session, err := api.analytics.CloseSession(c.Request.Context(), c.Param("session_id"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"engagement_score": session.EngagementScore,
		"intent":           session.Intent,
	})
}

// linkBySlug resolves the :slug parameter through the cache, falling
// back to the database and repopulating on a miss.
func (api *API) linkBySlug(c *gin.Context) (*models.Link, bool) {
	slug := c.Param("slug")

	if api.cache != nil {
		if cached, err := api.cache.GetLink(c.Request.Context(), slug); err == nil && cached != nil {
			return cached, true
		}
	}

	link, err := api.repo.GetLinkBySlug(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return nil, false
	}

	if api.cache != nil {
		_ = api.cache.SetLink(c.Request.Context(), link, linkCacheTTL)
	}

	return link, true
}

// publicLink strips owner-only fields before handing link metadata to a
// viewer.
func publicLink(link *models.Link) gin.H {
	return gin.H{
		"slug":           link.Slug,
		"title":          link.Title,
		"content_type":   link.ContentType,
		"file_name":      link.FileName,
		"total_pages":    link.TotalPages,
		"video_duration": link.VideoDuration,
		"allow_download": link.AllowDownload,
	}
}
