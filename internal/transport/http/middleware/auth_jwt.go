package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crm-backend/internal/core/auth"
	resp "crm-backend/internal/transport/http/response"
)

const identityKey = "identity"

// AuthJWT rejects requests without a valid bearer token before any handler
// runs, and attaches the verified identity to the context.
func AuthJWT(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			resp.AbortErr(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		id, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			resp.AbortErr(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin is the single capability gate for admin-only routes; handlers
// never compare roles inline. Must run after AuthJWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Identity(c).IsAdmin() {
			resp.AbortErr(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// Identity returns the verified caller set by AuthJWT; zero value if unset.
func Identity(c *gin.Context) auth.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(auth.Identity)
	return id
}
