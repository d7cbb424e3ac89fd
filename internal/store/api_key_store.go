package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
)

// Sentinel errors for API key store operations
var (
	ErrAPIKeyNotFound      = errors.New("api key not found")
	ErrAPIKeyAlreadyExists = errors.New("api key already exists")
)

// APIKeyStore defines storage operations for API keys.
type APIKeyStore interface {
	// Create inserts an API key.
	// Returns ErrAPIKeyAlreadyExists if the ID or hash collides.
	Create(ctx context.Context, key *models.APIKey) error

	// ListByOrg returns an organization's keys, newest first, with the creating user populated.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error)

	// GetByHash looks a key up by its hash.
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)

	// TouchLastUsed stamps the key's last used time.
	TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error

	// Delete removes a key scoped to an organization.
	// Returns ErrAPIKeyNotFound if it doesn't exist or belongs to another org.
	Delete(ctx context.Context, orgID, keyID uuid.UUID) error
}
