package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
)

// WaitOutcome is the result of waiting for a job.
type WaitOutcome string

const (
	WaitSucceeded WaitOutcome = "SUCCEEDED"
	WaitFailed    WaitOutcome = "FAILED"
	WaitTimeout   WaitOutcome = "TIMEOUT"
)

// WaitResult is the job as last read and how the wait ended.
type WaitResult struct {
	Job     *models.Job
	Outcome WaitOutcome
}

var errStillRunning = errors.New("job still running")

// Wait re-reads the job every poll interval until it is terminal or timeout
// elapses. Cancelling ctx stops the wait and returns the context error.
func (s *Service) Wait(ctx context.Context, orgID, jobID uuid.UUID, timeout time.Duration) (*WaitResult, error) {
	start := time.Now()

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	last, err := backoff.Retry(wctx, func() (*models.Job, error) {
		job, err := s.Get(wctx, orgID, jobID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		return nil, errStillRunning
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.pollInterval)),
		// the deadline on wctx bounds the wait
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		if ctx.Err() != nil || wctx.Err() == nil {
			return nil, err
		}
		// one last read at the deadline
		if last, err = s.Get(ctx, orgID, jobID); err != nil {
			return nil, err
		}
	}

	result := &WaitResult{Job: last}
	switch last.Status {
	case models.JobStatusSucceeded:
		result.Outcome = WaitSucceeded
	case models.JobStatusFailed:
		result.Outcome = WaitFailed
	default:
		result.Outcome = WaitTimeout
	}

	metrics := telemetry.GetMetrics()
	metrics.SyncWaitTotal.Add(ctx, 1, telemetry.Outcome(string(result.Outcome)))
	metrics.SyncWaitDuration.Record(ctx, time.Since(start).Seconds(), telemetry.Outcome(string(result.Outcome)))

	return result, nil
}
