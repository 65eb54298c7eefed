package insurance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"insurease-backend/internal/shared/storage/policystore/local"
	"insurease-backend/internal/users"
)

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("", func(c *gin.Context) {
		users.SetCurrent(c, users.User{ID: "u-1", Role: c.GetHeader("X-Test-Role")})
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(authed)
	return r
}

func call(r http.Handler, method, path, role string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCompanyRoutes(t *testing.T) {
	r := newRouter(NewService(local.New(t.TempDir())))
	body := []byte(`{"name":"Alm Brand"}`)

	rec := call(r, http.MethodPost, "/insurance-companies", users.RoleUser, body)
	if rec.Code != http.StatusForbidden || decode(t, rec)["detail"] != "Not authorized to add insurance companies" {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = call(r, http.MethodPost, "/insurance-companies", users.RoleAdmin, body)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Insurance company Alm Brand added successfully" {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = call(r, http.MethodPost, "/insurance-companies", users.RoleAdmin, body)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["detail"] != "Insurance company already exists" {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = call(r, http.MethodDelete, "/insurance-companies/Alm%20Brand", users.RoleUser, nil)
	if rec.Code != http.StatusForbidden || decode(t, rec)["detail"] != "Not authorized to delete insurance companies" {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = call(r, http.MethodDelete, "/insurance-companies/Alm%20Brand", users.RoleAdmin, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Insurance company Alm Brand and all its policies deleted successfully" {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = call(r, http.MethodDelete, "/insurance-companies/Alm%20Brand", users.RoleAdmin, nil)
	if rec.Code != http.StatusNotFound || decode(t, rec)["detail"] != "Insurance company not found" {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddFailureMessage(t *testing.T) {
	r := newRouter(NewService(brokenStore{err: io.ErrShortWrite}))
	rec := call(r, http.MethodPost, "/insurance-companies", users.RoleAdmin, []byte(`{"name":"Codan"}`))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decode(t, rec)["detail"]; got != "Error adding insurance company: short write" {
		t.Fatalf("unexpected detail %q", got)
	}
}
