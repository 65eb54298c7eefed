package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/shared/server/respond"
	"insurease-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts sign-up on public and the rest on authed, which must require a session.
func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/users", h.create)
	authed.GET("/users", h.list)
	authed.GET("/users/:id", h.get)
	authed.PUT("/users/:id", h.update)
	authed.DELETE("/users/:id", h.remove)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	var actor *User
	if u, ok := Current(c); ok {
		actor = &u
	}
	user, err := h.Svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		writeError(c, err, "")
		return
	}
	respond.JSON(c, http.StatusCreated, user)
}

func (h *Handler) list(c *gin.Context) {
	actor, _ := Current(c)
	skip, err1 := queryInt(c, "skip", 0)
	limit, err2 := queryInt(c, "limit", DefaultListLimit)
	if err1 != nil || err2 != nil {
		respond.Error(c, http.StatusBadRequest, "skip and limit must be integers")
		return
	}
	list, err := h.Svc.List(c.Request.Context(), actor, skip, limit)
	if err != nil {
		writeError(c, err, "Not authorized to list users")
		return
	}
	respond.OK(c, list)
}

func (h *Handler) get(c *gin.Context) {
	actor, _ := Current(c)
	user, err := h.Svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err, "Not authorized to view this user")
		return
	}
	respond.OK(c, user)
}

func (h *Handler) update(c *gin.Context) {
	actor, _ := Current(c)
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Svc.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		writeError(c, err, "Not authorized to update this user")
		return
	}
	respond.OK(c, user)
}

func (h *Handler) remove(c *gin.Context) {
	actor, _ := Current(c)
	if err := h.Svc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		writeError(c, err, "Not authorized to delete this user")
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error, forbidden string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, inputMessage(err))
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrRoleChange):
		respond.Error(c, http.StatusForbidden, "Not authorized to change role")
	case errors.Is(err, ErrStatusChange):
		respond.Error(c, http.StatusForbidden, "Not authorized to change account status")
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, forbidden)
	default:
		telemetry.Error("users.error", map[string]any{"error": err, "path": c.Request.URL.Path})
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
	}
}

func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
