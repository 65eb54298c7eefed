package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/shared/server/respond"
	"insurease-backend/internal/shared/telemetry"
)

// CookieName carries "Bearer <token>" between browser and API.
const CookieName = "access_token"

type Handler struct {
	Svc          *Service
	CookieMaxAge int
}

func NewHandler(svc *Service, cookieMaxAge int) *Handler {
	if cookieMaxAge <= 0 {
		cookieMaxAge = 86400
	}
	return &Handler{Svc: svc, CookieMaxAge: cookieMaxAge}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.login)
	rg.POST("/logout", h.logout)
	rg.GET("/check-auth", h.checkAuth)
}

func (h *Handler) login(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		respond.Error(c, http.StatusBadRequest, "username and password are required")
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), email, password)
	if err != nil {
		WriteError(c, err)
		return
	}
	setSessionCookie(c, "Bearer "+res.Token, h.CookieMaxAge)
	telemetry.Info("session.login", map[string]any{
		"user_id": res.User.ID,
		"role":    res.User.Role,
	})
	respond.OK(c, gin.H{
		"user_id":      res.User.ID,
		"email":        res.User.Email,
		"role":         res.User.Role,
		"access_token": res.Token,
	})
}

func (h *Handler) logout(c *gin.Context) {
	setSessionCookie(c, "", -1)
	respond.Message(c, "Logged out successfully")
}

func (h *Handler) checkAuth(c *gin.Context) {
	user, err := h.Svc.Authenticate(c.Request.Context(), Credential(c))
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	respond.OK(c, gin.H{"user_id": user.ID, "role": user.Role})
}

// setSessionCookie writes the value unescaped. net/http quotes it because of the
// space, giving access_token="Bearer <token>" on the wire.
func setSessionCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// WriteError maps session failures to their HTTP responses.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		respond.Error(c, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, ErrMissingToken):
		respond.Error(c, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, ErrInvalidToken):
		c.Header("WWW-Authenticate", "Bearer")
		respond.Error(c, http.StatusUnauthorized, "Invalid authentication credentials")
	case errors.Is(err, ErrUserNotFound):
		respond.Error(c, http.StatusNotFound, "User not found")
	default:
		telemetry.Error("session.error", map[string]any{"error": err, "path": c.Request.URL.Path})
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
	}
}
