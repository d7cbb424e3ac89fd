package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type OrganizationStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.Organization // org_id -> Organization
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		organizations: make(map[uuid.UUID]*models.Organization),
	}
}

// createLocked stores org. Callers hold s.mu.
func (s *OrganizationStore) createLocked(org *models.Organization) error {
	if _, exists := s.organizations[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	clone := *org
	s.organizations[org.OrgID] = &clone

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// MembershipStore implements store.MembershipStore using in-memory storage.
type MembershipStore struct {
	mu sync.Mutex

	orgs        *OrganizationStore
	memberships map[uuid.UUID][]*models.Membership // user_id -> memberships, oldest first
}

// NewMembershipStore creates a membership store that creates organizations in orgs.
func NewMembershipStore(orgs *OrganizationStore) *MembershipStore {
	return &MembershipStore{
		orgs:        orgs,
		memberships: make(map[uuid.UUID][]*models.Membership),
	}
}

// ListByUser returns a user's memberships, oldest first.
func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.Membership, 0, len(s.memberships[userID]))
	for _, m := range s.memberships[userID] {
		clone := *m
		result = append(result, &clone)
	}

	return result, nil
}

// EnsureOwner returns the user's oldest membership, creating org and an OWNER membership when there is none.
func (s *MembershipStore) EnsureOwner(ctx context.Context, userID uuid.UUID, org *models.Organization) (*models.Membership, *models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.memberships[userID]; len(existing) > 0 {
		first := *existing[0]
		existingOrg, err := s.orgs.Get(ctx, first.OrgID)
		if err != nil {
			return nil, nil, err
		}
		return &first, existingOrg, nil
	}

	s.orgs.mu.Lock()
	err := s.orgs.createLocked(org)
	s.orgs.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	membership := &models.Membership{
		MembershipID: uuid.Must(uuid.NewV7()),
		UserID:       userID,
		OrgID:        org.OrgID,
		Role:         models.RoleOwner,
		CreatedAt:    time.Now(),
	}
	s.memberships[userID] = append(s.memberships[userID], membership)

	clone := *membership
	orgClone := *org
	return &clone, &orgClone, nil
}
