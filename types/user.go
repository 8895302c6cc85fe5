package types

import (
	"strings"
	"time"
)

const (
	// RoleUser is the default role of a registered account.
	RoleUser = "User"
	// RoleAdmin grants moderation and user management rights.
	RoleAdmin = "Admin"
)

// User represents an account in the system.
// It contains identity, contact details, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique login name of the user.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Phone is the optional contact number shown on the user's listings.
	Phone *string `json:"phone,omitempty" db:"phone"`

	// Role indicates the user's authorization level
	// within the system ("User" or "Admin").
	Role string `json:"role" db:"role"`

	// IsActive is false for accounts disabled by an administrator.
	// Inactive accounts cannot sign in.
	IsActive bool `json:"is_active" db:"is_active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
