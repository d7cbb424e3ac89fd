package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// WebhookEvent is the event name sent when a job finishes.
const WebhookEvent = "job.completed"

// WebhookPayload is posted to a job's webhook URL when it reaches a terminal state.
type WebhookPayload struct {
	Event       string        `json:"event"`
	JobID       uuid.UUID     `json:"jobId"`
	Status      string        `json:"status"`
	Progress    int           `json:"progress"`
	Error       *WebhookError `json:"error,omitempty"`
	StatusURL   string        `json:"statusUrl"`
	CompletedAt time.Time     `json:"completedAt"`
}

// WebhookError carries the failure reason of a FAILED job.
type WebhookError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewWebhookPayload summarises a terminal job.
func NewWebhookPayload(job *models.Job) *WebhookPayload {
	p := &WebhookPayload{
		Event:       WebhookEvent,
		JobID:       job.JobID,
		Status:      string(job.Status),
		Progress:    job.Progress,
		StatusURL:   "/api/v1/jobs/" + job.JobID.String(),
		CompletedAt: job.UpdatedAt,
	}
	if job.Status == models.JobStatusFailed {
		p.Error = &WebhookError{}
		if job.ErrorCode != nil {
			p.Error.Code = *job.ErrorCode
		}
		if job.ErrorMessage != nil {
			p.Error.Message = *job.ErrorMessage
		}
	}
	return p
}

// WebhookSender delivers job completion events. Delivery is best effort with a few retries.
type WebhookSender struct {
	httpClient *http.Client
	maxTries   uint
	backOff    func() backoff.BackOff
}

// NewWebhookSender creates a sender. A nil httpClient uses a client with a 10s timeout.
func NewWebhookSender(httpClient *http.Client) *WebhookSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSender{
		httpClient: httpClient,
		maxTries:   3,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}
}

// Send posts the payload to url. 4xx responses other than 429 are not retried.
func (s *WebhookSender) Send(ctx context.Context, url string, payload *WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.post(ctx, url, body)
	},
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxTries(s.maxTries),
	)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.GetMetrics().WebhookDeliveryTotal.Add(ctx, 1, telemetry.Outcome(outcome))

	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}

	log.Debug().Str("job_id", payload.JobID.String()).Msg("Webhook delivered")
	return nil
}

func (s *WebhookSender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "videoinsight-webhook/1")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("webhook returned %s", resp.Status))
	}
}
