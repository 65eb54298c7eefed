package insurance

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/session"
	"insurease-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type createRequest struct {
	Name string `json:"name"`
}

// RegisterRoutes expects rg to already require an authenticated user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/insurance-companies", session.RequireAdmin("Not authorized to add insurance companies"), h.add)
	rg.DELETE("/insurance-companies/:company_name", session.RequireAdmin("Not authorized to delete insurance companies"), h.remove)
}

func (h *Handler) add(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	c.Set("insuranceName", req.Name)
	msg, err := h.Svc.Add(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, msg)
}

func (h *Handler) remove(c *gin.Context) {
	name := c.Param("company_name")
	c.Set("insuranceName", name)
	msg, err := h.Svc.Delete(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, msg)
}

func writeError(c *gin.Context, err error) {
	var storeErr *StoreError
	switch {
	case errors.Is(err, ErrInvalidName):
		respond.Error(c, http.StatusBadRequest, "Invalid insurance company name")
	case errors.Is(err, ErrExists):
		respond.Error(c, http.StatusBadRequest, "Insurance company already exists")
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Insurance company not found")
	case errors.As(err, &storeErr) && storeErr.Op == "add":
		respond.Error(c, http.StatusInternalServerError, "Error adding insurance company: "+storeErr.Err.Error())
	case errors.As(err, &storeErr):
		respond.Error(c, http.StatusInternalServerError, "Error deleting insurance company: "+storeErr.Err.Error())
	default:
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
	}
}
