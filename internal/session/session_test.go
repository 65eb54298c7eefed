package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"insurease-backend/internal/shared/auth"
	"insurease-backend/internal/users"
)

type fixture struct {
	svc    *Service
	users  *users.Service
	router *gin.Engine
	alice  users.User
	admin  users.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	userSvc := users.NewService(users.NewMemoryRepo(), bcrypt.MinCost)
	tokens, err := auth.NewTokenManager("test-secret", "HS256", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	svc := NewService(userSvc, tokens)

	ctx := context.Background()
	alice, err := userSvc.Create(ctx, nil, users.CreateInput{Email: "alice@example.dk", Password: "hemmeligt", FullName: "Alice"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	root := users.User{ID: "root", Role: users.RoleAdmin}
	admin, err := userSvc.Create(ctx, &root, users.CreateInput{Email: "admin@example.dk", Password: "hemmeligt", FullName: "Admin", Role: users.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	r := gin.New()
	r.Use(LoadSession(svc))
	NewHandler(svc, 0).RegisterRoutes(r.Group(""))
	authed := r.Group("", RequireUser())
	authed.GET("/whoami", func(c *gin.Context) {
		u, _ := users.Current(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	})
	authed.DELETE("/admin-only", RequireAdmin("Not authorized to delete insurance companies"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return fixture{svc: svc, users: userSvc, router: r, alice: alice, admin: admin}
}

func login(t *testing.T, r http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CookieName {
			return ck
		}
	}
	t.Fatalf("no %s cookie in response", CookieName)
	return nil
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestLoginSetsCookieAndReturnsToken(t *testing.T) {
	f := newFixture(t)
	rec := login(t, f.router, "alice@example.dk", "hemmeligt")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user_id"] != f.alice.ID || body["email"] != "alice@example.dk" || body["role"] != users.RoleUser {
		t.Fatalf("unexpected body %v", body)
	}
	claims, err := f.svc.Tokens.Parse(body["access_token"])
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Email() != "alice@example.dk" {
		t.Fatalf("expected subject to be the email, got %q", claims.Email())
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("expected 7 day lifetime, got %s", got)
	}

	ck := sessionCookie(t, rec)
	if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteNoneMode || ck.MaxAge != 86400 {
		t.Fatalf("unexpected cookie attributes %+v", ck)
	}
	if ck.Value != "Bearer "+body["access_token"] {
		t.Fatalf("unexpected cookie value %q", ck.Value)
	}
	raw := rec.Header().Get("Set-Cookie")
	if !strings.HasPrefix(raw, CookieName+`="Bearer `+body["access_token"]+`"`) {
		t.Fatalf("expected quoted unescaped cookie on the wire, got %q", raw)
	}

	stored, _ := f.users.Repo.GetByID(context.Background(), f.alice.ID)
	if stored.LastLogin == nil {
		t.Fatalf("expected lastLogin to be recorded")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ email, password string }{
		{"alice@example.dk", "forkert"},
		{"ukendt@example.dk", "hemmeligt"},
	} {
		rec := login(t, f.router, tc.email, tc.password)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.email, rec.Code)
		}
		if detail(t, rec) != "Incorrect email or password" {
			t.Fatalf("unexpected detail %q", rec.Body.String())
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("expected WWW-Authenticate header")
		}
	}
}

func TestCheckAuthWithCookieAndHeader(t *testing.T) {
	f := newFixture(t)
	ck := sessionCookie(t, login(t, f.router, "admin@example.dk", "hemmeligt"))

	req := httptest.NewRequest(http.MethodGet, "/check-auth", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["user_id"] != f.admin.ID || body["role"] != users.RoleAdmin {
		t.Fatalf("unexpected body %v", body)
	}

	token, _, _, err := f.svc.Tokens.Issue("alice@example.dk")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), f.alice.ID) {
		t.Fatalf("expected header auth to work, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/check-auth", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || detail(t, rec) != "Not authenticated" {
		t.Fatalf("expected 401 Not authenticated, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireUserErrors(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if rec.Code != http.StatusUnauthorized || detail(t, rec) != "Not authenticated" {
		t.Fatalf("expected missing credential 401, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || detail(t, rec) != "Invalid authentication credentials" {
		t.Fatalf("expected invalid token 401, got %d: %s", rec.Code, rec.Body.String())
	}

	token, _, _, _ := f.svc.Tokens.Issue("alice@example.dk")
	if err := f.users.Repo.Delete(context.Background(), f.alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound || detail(t, rec) != "User not found" {
		t.Fatalf("expected deleted user 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t)
	userCookie := sessionCookie(t, login(t, f.router, "alice@example.dk", "hemmeligt"))
	adminCookie := sessionCookie(t, login(t, f.router, "admin@example.dk", "hemmeligt"))

	req := httptest.NewRequest(http.MethodDelete, "/admin-only", nil)
	req.AddCookie(userCookie)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || detail(t, rec) != "Not authorized to delete insurance companies" {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/admin-only", nil)
	req.AddCookie(adminCookie)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected admin through, got %d", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Logged out successfully") {
		t.Fatalf("unexpected logout response %d: %s", rec.Code, rec.Body.String())
	}
	ck := sessionCookie(t, rec)
	if ck.MaxAge >= 0 || ck.Value != "" {
		t.Fatalf("expected expired cookie, got %+v", ck)
	}
}

func TestAuthenticateStripsBearerPrefix(t *testing.T) {
	f := newFixture(t)
	token, _, _, _ := f.svc.Tokens.Issue("alice@example.dk")
	for _, raw := range []string{token, "Bearer " + token, "bearer " + token} {
		u, err := f.svc.Authenticate(context.Background(), raw)
		if err != nil || u.ID != f.alice.ID {
			t.Fatalf("Authenticate(%q) = %v, %v", raw, u.ID, err)
		}
	}
	if _, err := f.svc.Authenticate(context.Background(), "Bearer "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}
