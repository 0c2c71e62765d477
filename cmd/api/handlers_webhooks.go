package main

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foliosend/foliosend/internal/middleware"
	"github.com/foliosend/foliosend/pkg/models"
)

type createWebhookRequest struct {
	URL    string               `json:"url" binding:"required,url"`
	Events models.WebhookEvents `json:"events"`
}

func (api *API) createWebhook(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.Events.SessionClosed && !req.Events.HotLead && !req.Events.LinkCreated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook must subscribe to at least one event"})
		return
	}

	secret, err := generateWebhookSecret()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate secret"})
		return
	}

	webhook := &models.Webhook{
		ID:       uuid.New().String(),
		OwnerID:  userID,
		URL:      req.URL,
		Events:   req.Events,
		Secret:   secret,
		IsActive: true,
	}

	if err := api.repo.CreateWebhook(c.Request.Context(), webhook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create webhook"})
		return
	}

	// The secret is shown once, on creation
	c.JSON(http.StatusCreated, webhook)
}

func (api *API) listWebhooks(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	webhooks, err := api.repo.GetOwnerWebhooks(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, w := range webhooks {
		w.Secret = ""
	}

	c.JSON(http.StatusOK, gin.H{"webhooks": webhooks})
}

func generateWebhookSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(bytes), nil
}
