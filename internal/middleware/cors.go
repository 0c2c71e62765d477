package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS allows the viewer snippet to report tracking events from any
// origin. The dashboard calls are same-origin; the ingest endpoints are
// embedded on pages the owner does not control.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
