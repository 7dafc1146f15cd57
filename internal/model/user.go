package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse role stored on a user record.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleReviewer   Role = "reviewer"
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleReviewer, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User is any authenticated principal: staff or student.
// InstituteID is nil only for super admins.
type User struct {
	ID           uuid.UUID  `json:"id"`
	InstituteID  *uuid.UUID `json:"institute_id,omitempty"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
