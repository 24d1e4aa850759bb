package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const KeyRequestID = "X-Request-ID"

// RequestID echoes the caller's X-Request-ID or mints a uuid when absent, and
// stores it on the context so the request logger and handlers can correlate
// log lines with the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(KeyRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Next()
	}
}

// RequestIDField exposes the id set by RequestID as a zap field for the
// request logger. Empty id means RequestID did not run.
func RequestIDField(c *gin.Context) zap.Field {
	return zap.String("request_id", c.GetString(KeyRequestID))
}
