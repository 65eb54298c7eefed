package chatbot

import (
	"errors"
	"net/http"
	"strconv"

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

type questionRequest struct {
	Question string `json:"question"`
}

type compareRequest struct {
	Policy1 string `json:"policy1"`
	Policy2 string `json:"policy2"`
	Query   string `json:"query"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// RegisterRoutes expects rg to already require an authenticated user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/question", h.question)
	rg.POST("/compare-policies", h.comparePolicies)
	rg.POST("/reindex", session.RequireAdmin("Not authorized to rebuild the policy index"), h.reindex)
}

func (h *Handler) question(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	answer, err := h.Svc.Ask(c.Request.Context(), req.Question)
	if err != nil {
		if errors.Is(err, ErrEmptyQuestion) {
			respond.Error(c, http.StatusBadRequest, "Question must not be empty")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "An error occurred while processing the question: "+err.Error())
		return
	}
	respond.OK(c, answerResponse{Answer: answer})
}

func (h *Handler) comparePolicies(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	c.Set("policyName", req.Policy1+" vs "+req.Policy2)
	answer, err := h.Svc.ComparePolicies(c.Request.Context(), req.Policy1, req.Policy2, req.Query)
	if err != nil {
		if errors.Is(err, ErrInvalidCompare) {
			respond.Error(c, http.StatusBadRequest, "policy1, policy2 and query are required")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "An error occurred while comparing policies: "+err.Error())
		return
	}
	respond.OK(c, answerResponse{Answer: answer})
}

func (h *Handler) reindex(c *gin.Context) {
	n, err := h.Svc.Reindex(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Error building policy index: "+err.Error())
		return
	}
	respond.Message(c, "Indexed "+strconv.Itoa(n)+" policies")
}
