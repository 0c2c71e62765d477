package models

import (
	"time"
)

// User represents an account owner
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	APIKey       string    `json:"api_key,omitempty" db:"api_key"`
	Plan         string    `json:"plan" db:"plan"` // free, pro
	LinkQuota    int       `json:"link_quota" db:"link_quota"` // Max active links on this plan
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Plan tier constants. The tier gates which aggregate fields are exposed
// to the caller; the core computes everything regardless.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Plan   string `json:"plan"`
}
