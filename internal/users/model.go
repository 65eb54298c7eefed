package users

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// User is an account of the system. The password hash never leaves the server.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	FullName          string     `json:"fullName"`
	Role              string     `json:"role"`
	BureauAffiliation string     `json:"bureauAffiliation,omitempty"`
	AccountStatus     string     `json:"accountStatus"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanActOn reports whether u may read or modify the user with the given id.
func (u User) CanActOn(userID string) bool {
	return u.IsAdmin() || (u.ID != "" && u.ID == userID)
}

// CreateInput is the sign-up payload.
type CreateInput struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	FullName          string `json:"fullName"`
	Role              string `json:"role"`
	BureauAffiliation string `json:"bureauAffiliation"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Email             *string `json:"email"`
	Password          *string `json:"password"`
	FullName          *string `json:"fullName"`
	Role              *string `json:"role"`
	BureauAffiliation *string `json:"bureauAffiliation"`
	AccountStatus     *string `json:"accountStatus"`
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
