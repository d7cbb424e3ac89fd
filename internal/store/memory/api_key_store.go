package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
)

// APIKeyStore implements store.APIKeyStore using in-memory storage.
type APIKeyStore struct {
	mu sync.RWMutex

	users  *UserStore
	keys   map[uuid.UUID]*models.APIKey // api_key_id -> APIKey
	byHash map[string]uuid.UUID
}

// NewAPIKeyStore creates an API key store that reads creating users from users.
func NewAPIKeyStore(users *UserStore) *APIKeyStore {
	return &APIKeyStore{
		users:  users,
		keys:   make(map[uuid.UUID]*models.APIKey),
		byHash: make(map[string]uuid.UUID),
	}
}

// Create inserts an API key.
func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key.APIKeyID]; exists {
		return store.ErrAPIKeyAlreadyExists
	}
	if _, exists := s.byHash[key.KeyHash]; exists {
		return store.ErrAPIKeyAlreadyExists
	}

	clone := *key
	clone.User = nil
	s.keys[key.APIKeyID] = &clone
	s.byHash[key.KeyHash] = key.APIKeyID

	return nil
}

// ListByOrg returns an organization's keys, newest first.
func (s *APIKeyStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.APIKey
	for _, key := range s.keys {
		if key.OrgID != orgID {
			continue
		}
		clone := *key
		if user, err := s.users.Get(ctx, key.UserID); err == nil {
			clone.User = user
		}
		result = append(result, &clone)
	}

	slices.SortFunc(result, func(a, b *models.APIKey) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return result, nil
}

// GetByHash looks a key up by its hash.
func (s *APIKeyStore) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, exists := s.byHash[keyHash]
	if !exists {
		return nil, store.ErrAPIKeyNotFound
	}

	clone := *s.keys[keyID]
	return &clone, nil
}

// TouchLastUsed stamps the key's last used time.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, exists := s.keys[keyID]
	if !exists {
		return store.ErrAPIKeyNotFound
	}

	key.LastUsedAt = &at

	return nil
}

// Delete removes a key scoped to an organization.
func (s *APIKeyStore) Delete(ctx context.Context, orgID, keyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, exists := s.keys[keyID]
	if !exists || key.OrgID != orgID {
		return store.ErrAPIKeyNotFound
	}

	delete(s.byHash, key.KeyHash)
	delete(s.keys, keyID)

	return nil
}
