// Package jobs manages the analysis job lifecycle: creation, worker
// notification, status updates, result retrieval and synchronous waits.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/worker"
	"github.com/rs/zerolog/log"
)

var (
	ErrWorkerNotConfigured = errors.New("worker not configured")
	ErrStorageKeyMismatch  = errors.New("storage key does not match media asset")
)

// WorkerNotConfiguredMessage is recorded on jobs that fail because no worker URL is set.
const WorkerNotConfiguredMessage = "Modal worker URL not configured"

const (
	DefaultListLimit    = 20
	MaxListLimit        = 100
	DefaultPollInterval = 2 * time.Second
)

// Notifier hands new jobs to the inference worker.
type Notifier interface {
	Configured() bool
	Notify(ctx context.Context, req worker.AnalyzeRequest) error
}

// WebhookSender delivers completion events for jobs that carry a webhook URL.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload *worker.WebhookPayload) error
}

// Config holds the service's collaborators and tunables.
type Config struct {
	Jobs     store.JobStore
	Assets   store.MediaAssetStore
	Objects  storage.ObjectStore
	Notifier Notifier
	Webhooks WebhookSender

	// NotifyTimeout bounds the background worker notification. Defaults to 15s.
	NotifyTimeout time.Duration
	// PollInterval is how often Wait re-reads a job. Defaults to 2s.
	PollInterval time.Duration
}

// Service implements the job lifecycle.
type Service struct {
	jobs     store.JobStore
	assets   store.MediaAssetStore
	objects  storage.ObjectStore
	notifier Notifier
	webhooks WebhookSender

	notifyTimeout time.Duration
	pollInterval  time.Duration

	wg sync.WaitGroup
}

// NewService creates a job service.
func NewService(cfg Config) *Service {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Service{
		jobs:          cfg.Jobs,
		assets:        cfg.Assets,
		objects:       cfg.Objects,
		notifier:      cfg.Notifier,
		webhooks:      cfg.Webhooks,
		notifyTimeout: cfg.NotifyTimeout,
		pollInterval:  cfg.PollInterval,
	}
}

// CreateInput describes a job to create.
type CreateInput struct {
	OrgID        uuid.UUID
	UserID       uuid.UUID
	MediaAssetID uuid.UUID
	// StorageKey is optional; when set it must match the asset's key.
	StorageKey string
	WebhookURL string
}

// Create records a QUEUED job and notifies the worker in the background.
//
// When no worker is configured the job is marked FAILED with CONFIG_ERROR and
// returned together with ErrWorkerNotConfigured.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Job, error) {
	asset, err := s.assets.Get(ctx, in.OrgID, in.MediaAssetID)
	if err != nil {
		return nil, err
	}
	if in.StorageKey != "" && in.StorageKey != asset.StorageKey {
		return nil, ErrStorageKeyMismatch
	}

	now := time.Now()
	job := &models.Job{
		JobID:        uuid.Must(uuid.NewV7()),
		OrgID:        in.OrgID,
		UserID:       in.UserID,
		MediaAssetID: asset.MediaAssetID,
		Status:       models.JobStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.WebhookURL != "" {
		job.WebhookURL = &in.WebhookURL
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	job.MediaAsset = asset

	metrics := telemetry.GetMetrics()
	metrics.JobsCreatedTotal.Add(ctx, 1)

	logger := log.With().
		Str("job_id", job.JobID.String()).
		Str("org_id", job.OrgID.String()).
		Logger()

	if s.notifier == nil || !s.notifier.Configured() {
		code, msg := models.JobErrorConfig, WorkerNotConfiguredMessage
		failed, _, err := s.jobs.ApplyUpdate(ctx, &models.JobUpdate{
			JobID:        job.JobID,
			Status:       models.JobStatusFailed,
			ErrorCode:    &code,
			ErrorMessage: &msg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to mark job failed: %w", err)
		}

		metrics.JobsCreateFailedTotal.Add(ctx, 1, telemetry.Outcome(code))
		logger.Error().Msg("Worker URL not configured, job failed")
		return failed, ErrWorkerNotConfigured
	}

	req := worker.AnalyzeRequest{
		JobID:           job.JobID,
		OrgID:           job.OrgID,
		VideoStorageKey: asset.StorageKey,
		WebhookURL:      in.WebhookURL,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// the request may finish before the worker answers
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(nctx, req); err != nil {
			logger.Error().Err(err).Msg("Failed to notify worker, job stays queued")
			return
		}
		logger.Info().Msg("Worker notified")
	}()

	return job, nil
}

// Get reads a job in the organization and inlines its results when it succeeded.
func (s *Service) Get(ctx context.Context, orgID, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.Get(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == models.JobStatusSucceeded && job.ResultJSONKey != nil {
		job.Result = s.loadResult(ctx, job)
	}

	return job, nil
}

func (s *Service) loadResult(ctx context.Context, job *models.Job) json.RawMessage {
	key := *job.ResultJSONKey
	logger := log.With().Str("job_id", job.JobID.String()).Str("key", key).Logger()

	if !storage.BelongsToOrg(key, job.OrgID) {
		logger.Warn().Msg("Result key outside organization prefix, not loading")
		return nil
	}

	data, err := s.objects.Download(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to download result document")
		return nil
	}

	if !json.Valid(data) {
		logger.Warn().Msg("Result document is not valid JSON")
		return nil
	}

	return json.RawMessage(data)
}

// List returns the organization's most recent jobs.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	return s.jobs.List(ctx, orgID, limit)
}

// Stats summarises the organization's jobs for the dashboard.
func (s *Service) Stats(ctx context.Context, orgID uuid.UUID) (*models.JobStats, error) {
	return s.jobs.Stats(ctx, orgID)
}

// ApplyUpdate applies a worker callback. Jobs that become terminal and carry
// a webhook URL get a completion event in the background. Only the update
// that moved the job into its terminal state sends it.
func (s *Service) ApplyUpdate(ctx context.Context, update *models.JobUpdate) (*models.Job, error) {
	metrics := telemetry.GetMetrics()

	job, changed, err := s.jobs.ApplyUpdate(ctx, update)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			metrics.JobTransitionsRejected.Add(ctx, 1, telemetry.Status(string(update.Status)))
			log.Warn().
				Str("job_id", update.JobID.String()).
				Str("to", string(update.Status)).
				Msg("Rejected job status transition")
		}
		return nil, err
	}

	if !changed {
		return job, nil
	}

	metrics.JobUpdatesTotal.Add(ctx, 1, telemetry.Status(string(job.Status)))

	if job.Status.IsTerminal() {
		log.Info().
			Str("job_id", job.JobID.String()).
			Str("status", string(job.Status)).
			Msg("Job finished")
		s.sendWebhook(ctx, job)
	}

	return job, nil
}

func (s *Service) sendWebhook(ctx context.Context, job *models.Job) {
	if s.webhooks == nil || job.WebhookURL == nil || *job.WebhookURL == "" {
		return
	}

	url := *job.WebhookURL
	payload := worker.NewWebhookPayload(job)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()

		if err := s.webhooks.Send(wctx, url, payload); err != nil {
			log.Warn().Err(err).Str("job_id", payload.JobID.String()).Msg("Webhook delivery failed")
		}
	}()
}

// Drain waits for background notifications and webhooks to finish or ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
