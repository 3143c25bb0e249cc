package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level of an account. It is fixed for the lifetime of a session.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleExternal Role = "externo"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleExternal:
		return true
	}
	return false
}

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User is an account able to log into the dashboard.
type User struct {
	Base
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
	Position     string `json:"position,omitempty" db:"position"`
	Status       string `json:"status" db:"status"`
}

// Identity is the authenticated principal held by a session.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	Position string    `json:"position,omitempty"`
	// ExpiresAt is when the session holding this identity lapses.
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityFromUser copies the session-visible fields of u.
func IdentityFromUser(u *User) *Identity {
	return &Identity{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Position: u.Position,
	}
}

// UserFilter represents user search parameters
type UserFilter struct {
	BaseFilter
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,min=2" validate:"required,min=2"`
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required,min=6" validate:"required,min=6"`
	Role     Role   `json:"role" binding:"required,oneof=admin user externo" validate:"required,oneof=admin user externo"`
	Position string `json:"position"`
	Status   string `json:"status" binding:"required,oneof=active inactive" validate:"required,oneof=active inactive"`
}

// UpdateUserRequest represents user update parameters. An empty password keeps the current one.
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=admin user externo"`
	Position *string `json:"position"`
	Status   *string `json:"status" binding:"omitempty,oneof=active inactive"`
}
