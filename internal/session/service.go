package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"insurease-backend/internal/shared/auth"
	"insurease-backend/internal/users"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrMissingToken       = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("session user not found")
)

// Login is the outcome of a successful password check.
type Login struct {
	User      users.User
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	Users  *users.Service
	Tokens *auth.TokenManager
}

func NewService(userSvc *users.Service, tokens *auth.TokenManager) *Service {
	return &Service{Users: userSvc, Tokens: tokens}
}

// Login verifies the password and issues a session token for the user's email.
func (s *Service) Login(ctx context.Context, email, password string) (Login, error) {
	user, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) || errors.Is(err, auth.ErrPasswordMismatch) {
			return Login{}, ErrInvalidCredentials
		}
		return Login{}, fmt.Errorf("authenticate: %w", err)
	}
	if err := s.Users.TouchLastLogin(ctx, &user); err != nil {
		return Login{}, fmt.Errorf("touch last login: %w", err)
	}
	token, _, exp, err := s.Tokens.Issue(user.Email)
	if err != nil {
		return Login{}, err
	}
	return Login{User: user, Token: token, ExpiresAt: exp}, nil
}

// Authenticate resolves a raw credential, with or without the "Bearer " prefix, to its user.
func (s *Service) Authenticate(ctx context.Context, raw string) (users.User, error) {
	token := stripBearer(raw)
	if token == "" {
		return users.User{}, ErrMissingToken
	}
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return users.User{}, ErrInvalidToken
	}
	user, err := s.Users.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, ErrUserNotFound
		}
		return users.User{}, err
	}
	return user, nil
}

func stripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "bearer") {
		return ""
	}
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}
