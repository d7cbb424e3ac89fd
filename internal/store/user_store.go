package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
)

// Sentinel errors for user store operations
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines storage operations for users.
type UserStore interface {
	// Create inserts a user.
	// Returns ErrUserAlreadyExists if the external ID or email is already taken.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByExternalID retrieves a user by identity provider subject.
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)

	// Update writes the user's profile fields.
	Update(ctx context.Context, user *models.User) error
}
