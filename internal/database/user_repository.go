package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/foliosend/foliosend/pkg/models"
)

// User management methods

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}

	query := `
		INSERT INTO users (id, email, password_hash, api_key, plan, link_quota, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		user.ID,
		user.Email,
		string(hashedPassword),
		apiKey,
		user.Plan,
		user.LinkQuota,
		user.IsActive,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.APIKey = apiKey
	return nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUserBy(ctx, "email", email)
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getUserBy(ctx, "id", userID)
}

// ValidateAPIKey validates an API key and returns the user
func (r *Repository) ValidateAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	user, err := r.getUserBy(ctx, "api_key", apiKey)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("invalid API key")
	}
	return user, err
}

func (r *Repository) getUserBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, api_key, plan, link_quota, is_active, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)

	var user models.User
	err := r.db.Pool.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.APIKey,
		&user.Plan,
		&user.LinkQuota,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// CheckLinkQuota reports whether the user may create another active link
func (r *Repository) CheckLinkQuota(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT u.link_quota, COUNT(l.id)
		FROM users u
		LEFT JOIN links l ON l.owner_id = u.id AND l.deleted_at IS NULL
		WHERE u.id = $1
		GROUP BY u.link_quota
	`

	var quota, active int
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&quota, &active)
	if err == pgx.ErrNoRows {
		return false, fmt.Errorf("user not found")
	}
	if err != nil {
		return false, fmt.Errorf("failed to check link quota: %w", err)
	}

	return active < quota, nil
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "fs_" + hex.EncodeToString(bytes), nil
}
