package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog/log"
)

// JobStore implements store.JobStore using in-memory storage.
// Status checks and writes happen under one mutex, so a transition is atomic.
type JobStore struct {
	mu sync.RWMutex

	assets *MediaAssetStore
	jobs   map[uuid.UUID]*models.Job // job_id -> Job
}

// NewJobStore creates a job store that reads media assets from assets.
func NewJobStore(assets *MediaAssetStore) *JobStore {
	return &JobStore{
		assets: assets,
		jobs:   make(map[uuid.UUID]*models.Job),
	}
}

// Create inserts a new job.
func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; exists {
		return store.ErrJobAlreadyExists
	}

	clone := *job
	clone.MediaAsset = nil
	clone.Result = nil
	s.jobs[job.JobID] = &clone

	return nil
}

// Get retrieves a job scoped to an organization.
func (s *JobStore) Get(ctx context.Context, orgID, jobID uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists || job.OrgID != orgID {
		return nil, store.ErrJobNotFound
	}

	return s.withAsset(job), nil
}

// GetByID retrieves a job regardless of organization.
func (s *JobStore) GetByID(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, store.ErrJobNotFound
	}

	return s.withAsset(job), nil
}

// List returns an organization's jobs, newest first.
func (s *JobStore) List(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Job
	for _, job := range s.jobs {
		if job.OrgID == orgID {
			result = append(result, s.withAsset(job))
		}
	}

	slices.SortFunc(result, func(a, b *models.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.JobID.String(), a.JobID.String())
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Stats counts an organization's jobs by status group.
func (s *JobStore) Stats(ctx context.Context, orgID uuid.UUID) (*models.JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.JobStats{}
	for _, job := range s.jobs {
		if job.OrgID != orgID {
			continue
		}
		stats.Total++
		switch job.Status {
		case models.JobStatusSucceeded:
			stats.Succeeded++
		case models.JobStatusFailed:
			stats.Failed++
		default:
			stats.InProgress++
		}
	}

	return stats, nil
}

// ApplyUpdate applies a partial update if the status transition is allowed.
func (s *JobStore) ApplyUpdate(ctx context.Context, update *models.JobUpdate) (*models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[update.JobID]
	if !exists {
		return nil, false, store.ErrJobNotFound
	}

	if job.Status.IsTerminal() && job.Status == update.Status {
		log.Debug().
			Str("job_id", job.JobID.String()).
			Str("status", string(job.Status)).
			Msg("Ignoring repeated terminal update")
		return s.withAsset(job), false, nil
	}

	if !models.CanTransition(job.Status, update.Status) {
		return nil, false, store.ErrInvalidTransition
	}

	update.Apply(job, time.Now())

	return s.withAsset(job), true, nil
}

// withAsset returns a copy of job with its media asset attached. Callers hold s.mu.
func (s *JobStore) withAsset(job *models.Job) *models.Job {
	clone := *job
	if s.assets != nil {
		clone.MediaAsset = s.assets.lookup(job.MediaAssetID)
	}
	return &clone
}
