package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/foliosend/foliosend/pkg/models"
)

func TestGenerateToken(t *testing.T) {
	userID := "test-user-id"
	email := "test@example.com"

	token, err := GenerateToken(userID, email, models.PlanPro, 1*time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{
			name:           "Missing authorization header",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid token format",
			token:          "InvalidToken",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			c.Request = req

			JWTAuth()(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestJWTAuthWithValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Generate a valid token
	userID := "test-user-id"
	email := "test@example.com"
	token, err := GenerateToken(userID, email, models.PlanPro, 1*time.Hour)
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c.Request = req

	// Create a handler that checks if user ID and plan are set
	handler := func(c *gin.Context) {
		extractedUserID, exists := GetUserID(c)
		assert.True(t, exists)
		assert.Equal(t, userID, extractedUserID)

		plan, exists := GetPlan(c)
		assert.True(t, exists)
		assert.Equal(t, models.PlanPro, plan)

		c.Status(http.StatusOK)
	}

	// Execute middleware and handler
	JWTAuth()(c)
	if !c.IsAborted() {
		handler(c)
	}

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePlan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		plan           string
		allowed        []string
		expectedStatus int
	}{
		{
			name:           "Pro plan passes pro gate",
			plan:           models.PlanPro,
			allowed:        []string{models.PlanPro},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Free plan blocked at pro gate",
			plan:           models.PlanFree,
			allowed:        []string{models.PlanPro},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Free plan passes open gate",
			plan:           models.PlanFree,
			allowed:        []string{models.PlanFree, models.PlanPro},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/test", nil)
			c.Set(PlanContextKey, tt.plan)

			RequirePlan(tt.allowed...)(c)
			if !c.IsAborted() {
				c.Status(http.StatusOK)
			}

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestGetPlanDefaultsToFree(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	plan, exists := GetPlan(c)
	assert.False(t, exists)
	assert.Equal(t, models.PlanFree, plan)
}
