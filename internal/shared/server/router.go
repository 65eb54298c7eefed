package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/chatbot"
	"insurease-backend/internal/insurance"
	"insurease-backend/internal/policies"
	"insurease-backend/internal/services/health"
	"insurease-backend/internal/session"
	"insurease-backend/internal/shared/config"
	"insurease-backend/internal/shared/metrics"
	"insurease-backend/internal/shared/server/middleware"
	"insurease-backend/internal/shared/server/respond"
	"insurease-backend/internal/users"
)

const chatbotRateGroup = "CHATBOT"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config           config.Config
	Session          *session.Service
	SessionHandler   *session.Handler
	UsersHandler     *users.Handler
	InsuranceHandler *insurance.Handler
	PoliciesHandler  *policies.Handler
	ChatbotHandler   *chatbot.Handler
	Health           *health.Service
	Limiter          middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	if deps.Session != nil {
		r.Use(session.LoadSession(deps.Session))
	}

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})
	r.GET("/ready", func(c *gin.Context) {
		report := healthSvc.Ready(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	public := r.Group("")
	authed := r.Group("", session.RequireUser())

	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(public)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(public, authed)
	}
	if deps.InsuranceHandler != nil {
		deps.InsuranceHandler.RegisterRoutes(authed)
		// Older clients call the company routes under /insurance.
		deps.InsuranceHandler.RegisterRoutes(authed.Group("/insurance"))
	}
	if deps.PoliciesHandler != nil {
		deps.PoliciesHandler.RegisterRoutes(public, authed)
		deps.PoliciesHandler.RegisterRoutes(public.Group("/policies"), authed.Group("/policies"))
	}
	if deps.ChatbotHandler != nil {
		limited := authed.Group("/chatbot", middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				chatbotRateGroup: middleware.PerMinute(deps.Config.ChatbotRatePerMin, deps.Config.ChatbotRateBurst),
			},
			GroupFor: rateGroup,
			Limiter:  deps.Limiter,
		}))
		deps.ChatbotHandler.RegisterRoutes(limited)
	}

	return r
}

func rateGroup(c *gin.Context) string {
	if strings.HasPrefix(c.Request.URL.Path, "/chatbot/") {
		return chatbotRateGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
