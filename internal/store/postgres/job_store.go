package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog/log"
)

// JobStore implements store.JobStore using PostgreSQL.
type JobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a new PostgreSQL-backed job store.
func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{
		pool: pool,
	}
}

const jobSelect = `
	SELECT j.job_id, j.org_id, j.user_id, j.media_asset_id, j.status, j.progress,
	       j.error_code, j.error_message, j.result_json_key, j.webhook_url,
	       j.created_at, j.updated_at,
	       m.media_asset_id, m.org_id, m.storage_key, m.mime_type, m.filename,
	       m.size_bytes, m.checksum, m.created_at
	FROM jobs j
	JOIN media_assets m ON m.media_asset_id = j.media_asset_id
`

// Create inserts a new job.
func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, org_id, user_id, media_asset_id, status, progress,
			error_code, error_message, result_json_key, webhook_url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := s.pool.Exec(ctx, query,
		job.JobID,
		job.OrgID,
		job.UserID,
		job.MediaAssetID,
		string(job.Status),
		job.Progress,
		job.ErrorCode,
		job.ErrorMessage,
		job.ResultJSONKey,
		job.WebhookURL,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrJobAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %w", store.ErrMediaAssetNotFound, err)
		}
		return fmt.Errorf("failed to create job: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("job_id", job.JobID.String()).
		Str("org_id", job.OrgID.String()).
		Str("status", string(job.Status)).
		Msg("Created job")

	return nil
}

// Get retrieves a job scoped to an organization.
func (s *JobStore) Get(ctx context.Context, orgID, jobID uuid.UUID) (*models.Job, error) {
	return scanJob(s.pool.QueryRow(ctx, jobSelect+` WHERE j.job_id = $1 AND j.org_id = $2`, jobID, orgID))
}

// GetByID retrieves a job regardless of organization.
func (s *JobStore) GetByID(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return scanJob(s.pool.QueryRow(ctx, jobSelect+` WHERE j.job_id = $1`, jobID))
}

// List returns an organization's jobs, newest first.
func (s *JobStore) List(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error) {
	query := jobSelect + ` WHERE j.org_id = $1 ORDER BY j.created_at DESC, j.job_id DESC`
	args := []any{orgID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, nil
}

// Stats counts an organization's jobs by status group.
func (s *JobStore) Stats(ctx context.Context, orgID uuid.UUID) (*models.JobStats, error) {
	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'SUCCEEDED'),
			count(*) FILTER (WHERE status = 'FAILED'),
			count(*) FILTER (WHERE status IN ('QUEUED', 'RUNNING'))
		FROM jobs
		WHERE org_id = $1
	`

	var stats models.JobStats
	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.Failed,
		&stats.InProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", mapPostgresError(err))
	}

	return &stats, nil
}

// ApplyUpdate applies a partial update in a single conditional statement.
// The row only changes if its current status is an allowed predecessor.
func (s *JobStore) ApplyUpdate(ctx context.Context, update *models.JobUpdate) (*models.Job, bool, error) {
	allowed := make([]string, 0, 2)
	for _, status := range update.Status.AllowedPredecessors() {
		allowed = append(allowed, string(status))
	}

	query := `
		UPDATE jobs SET
			status = $2,
			progress = COALESCE($3, progress),
			error_code = COALESCE($4, error_code),
			error_message = COALESCE($5, error_message),
			result_json_key = COALESCE($6, result_json_key),
			updated_at = $7
		WHERE job_id = $1 AND status = ANY($8)
	`

	result, err := s.pool.Exec(ctx, query,
		update.JobID,
		string(update.Status),
		update.Progress,
		update.ErrorCode,
		update.ErrorMessage,
		update.ResultJSONKey,
		time.Now(),
		allowed,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update job: %w", mapPostgresError(err))
	}

	current, err := s.GetByID(ctx, update.JobID)
	if err != nil {
		return nil, false, err
	}

	if result.RowsAffected() == 0 {
		if current.Status == update.Status && current.Status.IsTerminal() {
			return current, false, nil
		}
		log.Debug().
			Str("job_id", update.JobID.String()).
			Str("from", string(current.Status)).
			Str("to", string(update.Status)).
			Msg("Rejected job status transition")
		return nil, false, store.ErrInvalidTransition
	}

	log.Debug().
		Str("job_id", update.JobID.String()).
		Str("status", string(update.Status)).
		Int("progress", current.Progress).
		Msg("Updated job")

	return current, true, nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		job    models.Job
		asset  models.MediaAsset
		status string
	)

	err := row.Scan(
		&job.JobID,
		&job.OrgID,
		&job.UserID,
		&job.MediaAssetID,
		&status,
		&job.Progress,
		&job.ErrorCode,
		&job.ErrorMessage,
		&job.ResultJSONKey,
		&job.WebhookURL,
		&job.CreatedAt,
		&job.UpdatedAt,
		&asset.MediaAssetID,
		&asset.OrgID,
		&asset.StorageKey,
		&asset.MimeType,
		&asset.Filename,
		&asset.SizeBytes,
		&asset.Checksum,
		&asset.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", mapPostgresError(err))
	}

	if job.Status, err = models.ParseJobStatus(status); err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.MediaAsset = &asset

	return &job, nil
}
