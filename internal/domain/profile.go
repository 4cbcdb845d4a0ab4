package domain

import (
	"strings"
	"time"
)

// Role controls access to admin-only transitions.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile is the identity attached to listings and bids. The core treats it
// as an opaque key; only Username and Role matter here.
type Profile struct {
	ID           string
	Username     string
	Email        string
	Role         Role
	PasswordHash string // set only by the local-DSN identity backend
	CreatedAt    time.Time
}

// IsAdmin reports whether the profile may perform admin transitions.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SameUser compares two usernames case-insensitively.
func SameUser(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
