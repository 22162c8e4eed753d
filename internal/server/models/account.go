// Package models defines persistence-level entities shared by repositories
// and services.
package models

import "time"

// Role names the permission tier of a system account.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleStaff    Role = "Staff"
	RoleLecturer Role = "Lecturer"
)

// Account is a system account that can authenticate and own sessions.
// PasswordHash is a bcrypt digest; the plaintext never leaves the request.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedDate  time.Time
}
