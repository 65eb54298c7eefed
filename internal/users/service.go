package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"insurease-backend/internal/shared/auth"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	// ErrRoleChange is returned when a non-admin tries to change a role.
	ErrRoleChange = errors.New("role change not allowed")
	// ErrStatusChange is returned when a non-admin tries to change an account status.
	ErrStatusChange = errors.New("account status change not allowed")
)

type Service struct {
	Repo       Repo
	BcryptCost int
	now        func() time.Time
}

func NewService(repo Repo, bcryptCost int) *Service {
	return &Service{Repo: repo, BcryptCost: bcryptCost, now: time.Now}
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

// Create registers a user. Only an admin actor may assign a role other than "user".
func (s *Service) Create(ctx context.Context, actor *User, in CreateInput) (User, error) {
	email, err := validateEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if in.Password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return User{}, fmt.Errorf("%w: fullName is required", ErrInvalidInput)
	}
	role := RoleUser
	if actor != nil && actor.IsAdmin() && strings.TrimSpace(in.Role) != "" {
		if role, err = validateRole(in.Role); err != nil {
			return User{}, err
		}
	}

	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := auth.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock()
	user := User{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hash,
		FullName:          fullName,
		Role:              role,
		BureauAffiliation: strings.TrimSpace(in.BureauAffiliation),
		AccountStatus:     StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Get returns the user with the given id if actor may see it.
func (s *Service) Get(ctx context.Context, actor User, userID string) (User, error) {
	if !actor.CanActOn(userID) {
		return User{}, ErrForbidden
	}
	return s.Repo.GetByID(ctx, userID)
}

// GetByEmail looks up a user by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.Repo.GetByEmail(ctx, NormalizeEmail(email))
}

// List pages through all users. Admin only.
func (s *Service) List(ctx context.Context, actor User, skip, limit int) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", ErrInvalidInput)
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxListLimit)
	}
	return s.Repo.List(ctx, skip, limit)
}

// Update applies the non-nil fields of in to the user.
func (s *Service) Update(ctx context.Context, actor User, userID string, in UpdateInput) (User, error) {
	if !actor.CanActOn(userID) {
		return User{}, ErrForbidden
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}

	if in.Role != nil {
		role, err := validateRole(*in.Role)
		if err != nil {
			return User{}, err
		}
		if role != user.Role && !actor.IsAdmin() {
			return User{}, ErrRoleChange
		}
		user.Role = role
	}
	if in.AccountStatus != nil {
		status := strings.TrimSpace(*in.AccountStatus)
		if status == "" {
			return User{}, fmt.Errorf("%w: accountStatus must not be empty", ErrInvalidInput)
		}
		if status != user.AccountStatus && !actor.IsAdmin() {
			return User{}, ErrStatusChange
		}
		user.AccountStatus = status
	}
	if in.Email != nil {
		email, err := validateEmail(*in.Email)
		if err != nil {
			return User{}, err
		}
		user.Email = email
	}
	if in.Password != nil {
		if *in.Password == "" {
			return User{}, fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
		}
		hash, err := auth.HashPassword(*in.Password, s.BcryptCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return User{}, fmt.Errorf("%w: fullName must not be empty", ErrInvalidInput)
		}
		user.FullName = name
	}
	if in.BureauAffiliation != nil {
		user.BureauAffiliation = strings.TrimSpace(*in.BureauAffiliation)
	}
	user.UpdatedAt = s.clock()

	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Delete removes the user if actor may act on it.
func (s *Service) Delete(ctx context.Context, actor User, userID string) error {
	if !actor.CanActOn(userID) {
		return ErrForbidden
	}
	return s.Repo.Delete(ctx, userID)
}

// Authenticate returns the user when email and password match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return User{}, err
	}
	return user, nil
}

// EnsureAdmin creates an admin account for email unless a user with that email
// already exists. It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	system := User{Role: RoleAdmin}
	_, err := s.Create(ctx, &system, CreateInput{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     RoleAdmin,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrEmailTaken):
		return false, nil
	default:
		return false, err
	}
}

// TouchLastLogin records a successful login.
func (s *Service) TouchLastLogin(ctx context.Context, user *User) error {
	now := s.clock()
	if err := s.Repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return err
	}
	user.LastLogin = &now
	return nil
}

func validateEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return email, nil
}

func validateRole(raw string) (string, error) {
	switch role := strings.ToLower(strings.TrimSpace(raw)); role {
	case RoleUser, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("%w: role must be %q or %q", ErrInvalidInput, RoleUser, RoleAdmin)
	}
}
