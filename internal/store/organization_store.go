package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
)

// Sentinel errors for organization and membership store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrMembershipNotFound        = errors.New("membership not found")
	ErrMembershipAlreadyExists   = errors.New("membership already exists")
)

// OrganizationStore defines read access to organizations. Organizations are
// only created through MembershipStore.EnsureOwner.
type OrganizationStore interface {
	// Get retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
}

// MembershipStore defines storage operations linking users to organizations.
type MembershipStore interface {
	// ListByUser returns a user's memberships, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)

	// EnsureOwner returns the user's oldest membership and its organization.
	// If the user has no membership, org is created together with an OWNER
	// membership. The check and the creation are atomic per user, so
	// concurrent calls for one user create at most one organization.
	EnsureOwner(ctx context.Context, userID uuid.UUID, org *models.Organization) (*models.Membership, *models.Organization, error)
}
