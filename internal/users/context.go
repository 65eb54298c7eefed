package users

import (
	"github.com/gin-gonic/gin"

	"insurease-backend/internal/shared/server/middleware"
)

const currentUserKey = "currentUser"

// SetCurrent stores the authenticated user on the request.
func SetCurrent(c *gin.Context, u User) {
	c.Set(currentUserKey, u)
	middleware.SetIdentity(c, u.ID, u.Role)
}

// Current returns the authenticated user, if any.
func Current(c *gin.Context) (User, bool) {
	if c == nil {
		return User{}, false
	}
	val, ok := c.Get(currentUserKey)
	if !ok {
		return User{}, false
	}
	u, ok := val.(User)
	return u, ok
}
