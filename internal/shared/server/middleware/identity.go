package middleware

import "github.com/gin-gonic/gin"

const (
	userIDKey   = "userId"
	userRoleKey = "userRole"
)

// SetIdentity records the authenticated user on the request context.
func SetIdentity(c *gin.Context, userID, role string) {
	c.Set(userIDKey, userID)
	c.Set(userRoleKey, role)
}

// UserIDFromContext fetches the user ID set by the session middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserRoleFromContext fetches the user role set by the session middleware.
func UserRoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userRoleKey)
	if role, ok := val.(string); ok {
		return role
	}
	return ""
}
