package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей
const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleClient:   {},
	RoleProvider: {},
	RoleAdmin:    {},
}

// User представляет пользователя платформы.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
