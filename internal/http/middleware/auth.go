// Identity extraction.
//
// The marketplace fronts this service with an authenticating proxy that
// verifies the caller's token and forwards the verified subject in X-User-ID.
// Auth() lifts that header into the Gin context so handlers and the rate
// limiter can key on the user. Requests without the header pass through
// unauthenticated; endpoints that require an identity reject them with 401.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDHeader = "X-User-ID"

// Auth stores the proxy-verified user id under the "userID" context key.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(userIDHeader)); uid != "" {
			c.Set("userID", uid)
		}
		c.Next()
	}
}
