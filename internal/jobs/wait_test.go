package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/stretchr/testify/require"
)

func TestService_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("returns results when the job succeeds", func(t *testing.T) {
		f := newFixture(t)
		job := f.create(t, "")

		key := storage.ResultKey(f.orgID, job.JobID)
		f.objects.Put(key, "application/json", []byte(`{"utterances":[]}`))

		go func() {
			time.Sleep(30 * time.Millisecond)
			_, _ = f.svc.ApplyUpdate(ctx, &models.JobUpdate{JobID: job.JobID, Status: models.JobStatusRunning, Progress: progress(60)})
			time.Sleep(30 * time.Millisecond)
			_, _ = f.svc.ApplyUpdate(ctx, &models.JobUpdate{JobID: job.JobID, Status: models.JobStatusSucceeded, Progress: progress(100), ResultJSONKey: &key})
		}()

		res, err := f.svc.Wait(ctx, f.orgID, job.JobID, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, WaitSucceeded, res.Outcome)
		require.Equal(t, 100, res.Job.Progress)
		require.JSONEq(t, `{"utterances":[]}`, string(res.Job.Result))
	})

	t.Run("reports failure", func(t *testing.T) {
		f := newFixture(t)
		job := f.create(t, "")

		code := "WORKER_ERROR"
		_, err := f.svc.ApplyUpdate(ctx, &models.JobUpdate{JobID: job.JobID, Status: models.JobStatusFailed, ErrorCode: &code})
		require.NoError(t, err)

		res, err := f.svc.Wait(ctx, f.orgID, job.JobID, time.Second)
		require.NoError(t, err)
		require.Equal(t, WaitFailed, res.Outcome)
		require.Equal(t, "WORKER_ERROR", *res.Job.ErrorCode)
	})

	t.Run("times out while the job is still running", func(t *testing.T) {
		f := newFixture(t)
		job := f.create(t, "")

		start := time.Now()
		res, err := f.svc.Wait(ctx, f.orgID, job.JobID, 100*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, WaitTimeout, res.Outcome)
		require.Equal(t, models.JobStatusQueued, res.Job.Status)
		require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("waits the full timeout with a coarse poll interval", func(t *testing.T) {
		f := newFixture(t)
		svc := NewService(Config{
			Jobs:         f.stores.Jobs,
			Assets:       f.stores.MediaAssets,
			Objects:      f.objects,
			Notifier:     f.notifier,
			PollInterval: 200 * time.Millisecond,
		})
		job := f.create(t, "")

		start := time.Now()
		res, err := svc.Wait(ctx, f.orgID, job.JobID, time.Second)
		elapsed := time.Since(start)
		require.NoError(t, err)
		require.Equal(t, WaitTimeout, res.Outcome)
		require.GreaterOrEqual(t, elapsed, time.Second)
		require.Less(t, elapsed, 3*time.Second)
	})

	t.Run("reports a job that finished between the last poll and the deadline", func(t *testing.T) {
		f := newFixture(t)
		svc := NewService(Config{
			Jobs:         f.stores.Jobs,
			Assets:       f.stores.MediaAssets,
			Objects:      f.objects,
			Notifier:     f.notifier,
			PollInterval: time.Hour,
		})
		job := f.create(t, "")

		go func() {
			time.Sleep(50 * time.Millisecond)
			code := "WORKER_ERROR"
			_, _ = svc.ApplyUpdate(ctx, &models.JobUpdate{JobID: job.JobID, Status: models.JobStatusFailed, ErrorCode: &code})
		}()

		res, err := svc.Wait(ctx, f.orgID, job.JobID, 200*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, WaitFailed, res.Outcome)
	})

	t.Run("stops when the caller goes away", func(t *testing.T) {
		f := newFixture(t)
		job := f.create(t, "")

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := f.svc.Wait(cctx, f.orgID, job.JobID, time.Minute)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Wait(ctx, f.orgID, uuid.Must(uuid.NewV7()), time.Second)
		require.ErrorIs(t, err, store.ErrJobNotFound)
	})
}
