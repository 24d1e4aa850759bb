package response

import "github.com/gin-gonic/gin"

// OK writes the success envelope: {"success":true, ...payload}.
func OK(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// Err writes the error envelope: {"error":"<msg>"}.
func Err(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// AbortErr is Err for middleware: it also stops the handler chain.
func AbortErr(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
