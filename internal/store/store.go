package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
)

// Sentinel errors for job and media asset store operations
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrJobAlreadyExists   = errors.New("job already exists")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrMediaAssetNotFound = errors.New("media asset not found")
	ErrMediaAssetExists   = errors.New("media asset already exists")
)

// Stores groups every store the application needs so they can be wired together.
type Stores struct {
	Users         UserStore
	Organizations OrganizationStore
	Memberships   MembershipStore
	MediaAssets   MediaAssetStore
	Jobs          JobStore
	APIKeys       APIKeyStore
}

// MediaAssetStore defines storage operations for uploaded media metadata.
type MediaAssetStore interface {
	// Create inserts a media asset.
	// Returns ErrMediaAssetExists if the ID or storage key is already taken.
	Create(ctx context.Context, asset *models.MediaAsset) error

	// Get retrieves a media asset scoped to an organization.
	// Returns ErrMediaAssetNotFound if it doesn't exist or belongs to another org.
	Get(ctx context.Context, orgID, assetID uuid.UUID) (*models.MediaAsset, error)

	// Delete removes a media asset scoped to an organization.
	// Returns ErrMediaAssetNotFound if it doesn't exist or belongs to another org.
	Delete(ctx context.Context, orgID, assetID uuid.UUID) error
}

// JobStore defines storage operations for analysis jobs.
//
// Status writes go through ApplyUpdate, which only succeeds when the
// transition is allowed by models.CanTransition. The check and write happen
// atomically.
type JobStore interface {
	// Create inserts a new job.
	Create(ctx context.Context, job *models.Job) error

	// Get retrieves a job scoped to an organization, with its media asset populated.
	// Returns ErrJobNotFound if the job doesn't exist or belongs to another org.
	Get(ctx context.Context, orgID, jobID uuid.UUID) (*models.Job, error)

	// GetByID retrieves a job regardless of organization. Only trusted callers
	// (the worker callback) may use this.
	GetByID(ctx context.Context, jobID uuid.UUID) (*models.Job, error)

	// List returns an organization's jobs, newest first, with media assets populated.
	List(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error)

	// Stats counts an organization's jobs by status group.
	Stats(ctx context.Context, orgID uuid.UUID) (*models.JobStats, error)

	// ApplyUpdate applies a partial update and returns the stored job and
	// whether this call wrote the row. A repeated terminal status equal to the
	// current one is a no-op that returns the job unchanged and false.
	// Returns ErrJobNotFound or ErrInvalidTransition.
	ApplyUpdate(ctx context.Context, update *models.JobUpdate) (*models.Job, bool, error)
}
