package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/shared/server/respond"
)

const (
	corsAllowMethods   = "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT"
	corsDefaultHeaders = "Accept, Accept-Language, Authorization, Content-Language, Content-Type, X-Request-Id"
)

// CORS admits credentialed requests from the frontend origins. Preflights mirror the
// requested headers; a preflight from any other origin is rejected with 400.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{})
	for _, o := range allowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(o), "/"); trimmed != "" {
			origins[trimmed] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, allowed := origins[origin]
		preflight := c.Request.Method == http.MethodOptions && origin != "" &&
			c.GetHeader("Access-Control-Request-Method") != ""

		if preflight && !allowed {
			respond.Error(c, http.StatusBadRequest, "Disallowed CORS origin")
			return
		}

		h := c.Writer.Header()
		if origin != "" && allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", "X-Request-Id, Retry-After")
		}

		if c.Request.Method == http.MethodOptions {
			if allowed {
				headers := c.GetHeader("Access-Control-Request-Headers")
				if headers == "" {
					headers = corsDefaultHeaders
				}
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", "600")
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
