package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/shared/server/respond"
	"insurease-backend/internal/users"
)

const sessionErrKey = "sessionError"

// Credential returns the raw credential from the cookie, falling back to the Authorization header.
func Credential(c *gin.Context) string {
	if v, err := c.Cookie(CookieName); err == nil && strings.TrimSpace(v) != "" {
		return v
	}
	return c.GetHeader("Authorization")
}

// LoadSession attaches the user when a valid credential is present. It never rejects.
func LoadSession(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Authenticate(c.Request.Context(), Credential(c))
		if err != nil {
			c.Set(sessionErrKey, err)
			c.Next()
			return
		}
		users.SetCurrent(c, user)
		c.Next()
	}
}

// RequireUser rejects requests that LoadSession could not authenticate.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := users.Current(c); ok {
			c.Next()
			return
		}
		err := ErrMissingToken
		if v, ok := c.Get(sessionErrKey); ok {
			if e, ok := v.(error); ok {
				err = e
			}
		}
		WriteError(c, err)
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := users.Current(c)
		if !ok || !user.IsAdmin() {
			respond.Error(c, http.StatusForbidden, message)
			return
		}
		c.Next()
	}
}
