package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foliosend/foliosend/internal/metrics"
	"github.com/foliosend/foliosend/internal/middleware"
	"github.com/foliosend/foliosend/internal/storage"
	"github.com/foliosend/foliosend/pkg/models"
)

func (api *API) createLink(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.ContentType {
	case models.ContentTypeDocument, models.ContentTypeTrackSite, models.ContentTypeVideo, models.ContentTypeOther:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown content type: %s", req.ContentType)})
		return
	}

	if req.ContentType == models.ContentTypeTrackSite && req.TargetURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_url is required for track-site links"})
		return
	}

	link := &models.Link{
		ID:            uuid.New().String(),
		OwnerID:       userID,
		Title:         req.Title,
		ContentType:   req.ContentType,
		TargetURL:     req.TargetURL,
		TotalPages:    req.TotalPages,
		VideoDuration: req.VideoDuration,
		AllowDownload: req.AllowDownload,
	}

	if err := api.repo.CreateLink(c.Request.Context(), link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create link"})
		return
	}

	// Webhook failures never fail the request
	_ = api.webhooks.NotifyLinkCreated(c.Request.Context(), link)

	c.JSON(http.StatusCreated, link)
}

// uploadDocument attaches a file to an existing link. The file lands in
// object storage under the link's own prefix.
func (api *API) uploadDocument(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer src.Close()

	contentType := storage.ContentTypeFor(file.Filename)
	objectKey := fmt.Sprintf("links/%s/%s", link.ID, file.Filename)

	start := time.Now()
	if err := api.storage.Upload(c.Request.Context(), objectKey, src, file.Size, contentType); err != nil {
		metrics.RecordStorageOperation("upload", "error", time.Since(start).Seconds())
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}
	metrics.RecordStorageOperation("upload", "success", time.Since(start).Seconds())

	if err := api.repo.SetLinkFile(c.Request.Context(), link.ID, objectKey, file.Filename, file.Size); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	link.ObjectKey = objectKey
	link.FileName = file.Filename
	link.FileSize = file.Size
	api.invalidateLinkCache(c, link)

	metrics.RecordUpload(contentType, file.Size)
	c.JSON(http.StatusOK, link)
}

func (api *API) getLink(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, link)
}

func (api *API) listLinks(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, offset := pagination(c)

	links, err := api.repo.ListLinks(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links":  links,
		"limit":  limit,
		"offset": offset,
	})
}

func (api *API) updateLink(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link.Title = req.Title
	if req.TargetURL != "" {
		link.TargetURL = req.TargetURL
	}
	if req.TotalPages > 0 {
		link.TotalPages = req.TotalPages
	}
	if req.VideoDuration > 0 {
		link.VideoDuration = req.VideoDuration
	}
	link.AllowDownload = req.AllowDownload

	if err := api.repo.UpdateLink(c.Request.Context(), link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	api.invalidateLinkCache(c, link)

	c.JSON(http.StatusOK, link)
}

// deleteLink soft-deletes the link. Sessions and aggregates survive so
// existing reports keep working; the slug just stops resolving.
func (api *API) deleteLink(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	if err := api.repo.SoftDeleteLink(c.Request.Context(), link.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete link"})
		return
	}
	api.invalidateLinkCache(c, link)
	if api.cache != nil {
		// Live counters and rate-limit windows are per-link and keyed
		// by source or time bucket; sweep the lot.
		_ = api.cache.DeletePattern(c.Request.Context(), "views:"+link.ID+":*")
		_ = api.cache.DeletePattern(c.Request.Context(), "ratelimit:sessions:"+link.ID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted", "link_id": link.ID})
}

// getLinkFile returns a presigned URL for the stored file
func (api *API) getLinkFile(c *gin.Context) {
	link, ok := api.ownedLink(c)
	if !ok {
		return
	}

	if link.ObjectKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link has no file"})
		return
	}

	url, err := api.storage.GetURL(c.Request.Context(), link.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ownedLink loads the link in the :id parameter and enforces ownership.
// On failure it writes the response and returns ok=false.
func (api *API) ownedLink(c *gin.Context) (*models.Link, bool) {
	userID, _ := middleware.GetUserID(c)

	link, err := api.repo.GetLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return nil, false
	}

	if link.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}

	return link, true
}

func (api *API) invalidateLinkCache(c *gin.Context, link *models.Link) {
	if api.cache == nil {
		return
	}
	_ = api.cache.DeleteLink(c.Request.Context(), link.Slug)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
