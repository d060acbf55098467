package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"

	UserKey    = "user"
	UserHeader = "X-User"

	// AnonymousUser is recorded when a request carries no X-User header.
	AnonymousUser = "anonymous"
)

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it
// back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Actor reads the acting user from X-User. Authentication happens upstream;
// the name is only recorded on adjustments, documents and audit entries.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(UserHeader))
		if user == "" {
			user = AnonymousUser
		}
		if len(user) > 64 {
			user = user[:64]
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

// GetUser returns the acting user set by Actor.
func GetUser(c *gin.Context) string {
	if u := c.GetString(UserKey); u != "" {
		return u
	}
	return AnonymousUser
}
