package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestSender() *WebhookSender {
	s := NewWebhookSender(nil)
	s.backOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func TestNewWebhookPayload(t *testing.T) {
	code, msg := "WORKER_ERROR", "ffmpeg failed"
	job := &models.Job{
		JobID:        uuid.Must(uuid.NewV7()),
		Status:       models.JobStatusFailed,
		Progress:     20,
		ErrorCode:    &code,
		ErrorMessage: &msg,
		UpdatedAt:    time.Now(),
	}

	p := NewWebhookPayload(job)
	require.Equal(t, WebhookEvent, p.Event)
	require.Equal(t, "FAILED", p.Status)
	require.Equal(t, "/api/v1/jobs/"+job.JobID.String(), p.StatusURL)
	require.Equal(t, &WebhookError{Code: code, Message: msg}, p.Error)

	job.Status = models.JobStatusSucceeded
	require.Nil(t, NewWebhookPayload(job).Error)
}

func TestWebhookSender_Send(t *testing.T) {
	payload := &WebhookPayload{Event: WebhookEvent, JobID: uuid.Must(uuid.NewV7()), Status: "SUCCEEDED", Progress: 100}

	t.Run("delivered", func(t *testing.T) {
		var got WebhookPayload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, newTestSender().Send(context.Background(), srv.URL, payload))
		require.Equal(t, payload.JobID, got.JobID)
		require.Equal(t, "SUCCEEDED", got.Status)
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		require.NoError(t, newTestSender().Send(context.Background(), srv.URL, payload))
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max tries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		require.Error(t, newTestSender().Send(context.Background(), srv.URL, payload))
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusGone)
		}))
		defer srv.Close()

		err := newTestSender().Send(context.Background(), srv.URL, payload)
		require.ErrorContains(t, err, "410")
		require.Equal(t, int32(1), calls.Load())
	})
}
