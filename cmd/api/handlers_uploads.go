package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/foliosend/foliosend/internal/metrics"
	"github.com/foliosend/foliosend/internal/middleware"
	"github.com/foliosend/foliosend/internal/storage"
)

type initiateUploadRequest struct {
	LinkID    string `json:"link_id" binding:"required"`
	FileName  string `json:"file_name" binding:"required"`
	TotalSize int64  `json:"total_size" binding:"required"`
}

func (api *API) initiateUpload(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req initiateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The target link must exist and belong to the caller before any
	// bytes land on disk.
	link, err := api.repo.GetLink(c.Request.Context(), req.LinkID)
	if err != nil || link.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	u, err := api.uploads.Initiate(userID, req.FileName, req.TotalSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"upload_id":   u.ID,
		"link_id":     link.ID,
		"part_size":   u.PartSize,
		"total_parts": u.TotalParts,
		"expires_at":  u.ExpiresAt,
	})
}

func (api *API) uploadPart(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	partNumber, err := strconv.Atoi(c.Param("part_number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid part number"})
		return
	}

	part, err := api.uploads.UploadPart(userID, c.Param("upload_id"), partNumber, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, part)
}

type completeUploadRequest struct {
	LinkID string `json:"link_id" binding:"required"`
}

// completeUpload assembles the parts, pushes the file to object
// storage, and attaches it to the link.
func (api *API) completeUpload(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req completeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := api.repo.GetLink(c.Request.Context(), req.LinkID)
	if err != nil || link.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	path, err := api.uploads.Complete(userID, c.Param("upload_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer os.Remove(path)

	file, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read assembled file"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stat assembled file"})
		return
	}

	fileName := filepath.Base(path)
	contentType := storage.ContentTypeFor(fileName)
	objectKey := fmt.Sprintf("links/%s/%s", link.ID, fileName)

	if err := api.storage.Upload(c.Request.Context(), objectKey, file, info.Size(), contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}

	if err := api.repo.SetLinkFile(c.Request.Context(), link.ID, objectKey, fileName, info.Size()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	link.ObjectKey = objectKey
	link.FileName = fileName
	link.FileSize = info.Size()
	api.invalidateLinkCache(c, link)

	metrics.RecordUpload(contentType, info.Size())
	c.JSON(http.StatusOK, link)
}

func (api *API) abortUpload(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := api.uploads.Abort(userID, c.Param("upload_id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Upload aborted"})
}
