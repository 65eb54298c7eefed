package policies

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/session"
	"insurease-backend/internal/shared/server/respond"
	"insurease-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes mounts the public listing on public and the admin mutations on authed.
func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/policies", h.list)
	authed.POST("/upload-policy", session.RequireAdmin("Not authorized to upload insurance policies"), h.upload)
	authed.DELETE("/delete-policy/:insurance_name/:policy_name", session.RequireAdmin("Not authorized to delete insurance policies"), h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respond.Error(c, http.StatusBadRequest, "file is required")
		return
	}
	company := c.PostForm("insurance_name")
	policy := c.PostForm("policy_name")
	c.Set("insuranceName", company)
	c.Set("policyName", policy)
	if company == "" || policy == "" {
		respond.Error(c, http.StatusBadRequest, "insurance_name and policy_name are required")
		return
	}

	// The extension check runs before the upload is opened or written anywhere.
	if err := CheckFileName(fileHeader.Filename); err != nil {
		writeError(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Unable to read uploaded file")
		return
	}
	defer file.Close()

	msg, err := h.Svc.Upload(c.Request.Context(), fileHeader.Filename, company, policy, file)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, msg)
}

func (h *Handler) remove(c *gin.Context) {
	company := c.Param("insurance_name")
	policy := c.Param("policy_name")
	c.Set("insuranceName", company)
	c.Set("policyName", policy)
	msg, err := h.Svc.Delete(c.Request.Context(), company, policy)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, msg)
}

func (h *Handler) list(c *gin.Context) {
	structure, err := h.Svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"policies": structure})
}

func writeError(c *gin.Context, err error) {
	var opErr *OpError
	switch {
	case errors.Is(err, ErrNotPDF):
		respond.Error(c, http.StatusBadRequest, "File must be a PDF")
	case errors.Is(err, ErrInvalidName):
		respond.Error(c, http.StatusBadRequest, "Invalid insurance or policy name")
	case errors.Is(err, ErrCompanyNotFound):
		respond.Error(c, http.StatusNotFound, "Insurance company not found")
	case errors.Is(err, ErrPolicyNotFound):
		respond.Error(c, http.StatusNotFound, "Policy file not found")
	case errors.Is(err, ErrBaseMissing):
		respond.Error(c, http.StatusInternalServerError, "Insurance folder not found")
	case errors.As(err, &opErr):
		telemetry.Error("policy.store_failed", map[string]any{"op": opErr.Op, "error": opErr.Err})
		switch opErr.Op {
		case "upload":
			respond.Error(c, http.StatusInternalServerError, "Failed to write file")
		case "delete":
			respond.Error(c, http.StatusInternalServerError, "An error occurred while deleting the file: "+opErr.Err.Error())
		default:
			if errors.Is(opErr.Err, fs.ErrPermission) {
				respond.Error(c, http.StatusInternalServerError, "Permission denied when accessing insurance folders")
				return
			}
			respond.Error(c, http.StatusInternalServerError, "Error reading folder structure: "+opErr.Err.Error())
		}
	default:
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
	}
}
