package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosend/foliosend/pkg/models"
)

func TestPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 20, 0},
		{"explicit", "limit=50&offset=10", 50, 10},
		{"zero limit ignored", "limit=0", 20, 0},
		{"limit capped", "limit=500", 20, 0},
		{"negative offset ignored", "offset=-5", 20, 0},
		{"garbage ignored", "limit=abc&offset=xyz", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/links?"+tt.query, nil)

			limit, offset := pagination(c)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestPublicLinkStripsOwnerFields(t *testing.T) {
	link := &models.Link{
		ID:          "link-1",
		OwnerID:     "owner-1",
		Slug:        "q3-pitch",
		Title:       "Q3 Pitch Deck",
		ContentType: models.ContentTypeDocument,
		ObjectKey:   "links/link-1/deck.pdf",
		FileName:    "deck.pdf",
		TotalPages:  12,
	}

	public := publicLink(link)

	assert.Equal(t, "q3-pitch", public["slug"])
	assert.Equal(t, "deck.pdf", public["file_name"])
	assert.NotContains(t, public, "id")
	assert.NotContains(t, public, "owner_id")
	assert.NotContains(t, public, "object_key")
	assert.NotContains(t, public, "target_url")
}

func TestCreateLinkValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	api := &API{}

	router := gin.New()
	router.POST("/links", func(c *gin.Context) {
		c.Set("user_id", "owner-1")
		api.createLink(c)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing title", `{"content_type":"document"}`, http.StatusBadRequest},
		{"unknown content type", `{"title":"x","content_type":"spreadsheet"}`, http.StatusBadRequest},
		{"track-site without target", `{"title":"x","content_type":"track-site"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/links", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGenerateWebhookSecret(t *testing.T) {
	first, err := generateWebhookSecret()
	require.NoError(t, err)
	second, err := generateWebhookSecret()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "whsec_"))
	assert.Len(t, first, len("whsec_")+64)
	assert.NotEqual(t, first, second)
}
