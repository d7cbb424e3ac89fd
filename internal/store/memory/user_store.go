package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	mu sync.RWMutex

	users      map[uuid.UUID]*models.User // user_id -> User
	byExternal map[string]uuid.UUID       // external_id -> user_id
	byEmail    map[string]uuid.UUID       // lower(email) -> user_id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[uuid.UUID]*models.User),
		byExternal: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

// Create inserts a user, enforcing unique ID, external ID and email.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserID]; exists {
		return store.ErrUserAlreadyExists
	}
	if _, exists := s.byExternal[user.ExternalID]; exists {
		return store.ErrUserAlreadyExists
	}
	if _, exists := s.byEmail[strings.ToLower(user.Email)]; exists {
		return store.ErrUserAlreadyExists
	}

	clone := *user
	s.users[user.UserID] = &clone
	s.byExternal[user.ExternalID] = user.UserID
	s.byEmail[strings.ToLower(user.Email)] = user.UserID

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocked(userID)
}

func (s *UserStore) getLocked(userID uuid.UUID) (*models.User, error) {
	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByExternalID retrieves a user by identity provider subject.
func (s *UserStore) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, exists := s.byExternal[externalID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return s.getLocked(userID)
}

// Update writes the user's profile fields.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.UserID]
	if !exists {
		return store.ErrUserNotFound
	}

	newEmail := strings.ToLower(user.Email)
	oldEmail := strings.ToLower(existing.Email)
	if newEmail != oldEmail {
		if _, taken := s.byEmail[newEmail]; taken {
			return store.ErrUserAlreadyExists
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = user.UserID
	}

	user.UpdatedAt = time.Now()

	clone := *user
	clone.ExternalID = existing.ExternalID
	clone.CreatedAt = existing.CreatedAt
	s.users[user.UserID] = &clone

	return nil
}
