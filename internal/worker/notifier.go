// Package worker talks to the external inference worker and to customer webhooks.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when no worker URL is set.
var ErrNotConfigured = errors.New("worker URL not configured")

// Config points the notifier at the worker.
type Config struct {
	// URL is the worker's base URL; jobs are posted to {URL}/analyze.
	URL string
	// Token is sent as a bearer token when set.
	Token string
	// CallbackBaseURL is the public base URL the worker calls back on.
	CallbackBaseURL string
	// Timeout bounds a single notification. Defaults to 15s.
	Timeout time.Duration
}

// AnalyzeRequest is the body posted to the worker for a new job.
type AnalyzeRequest struct {
	JobID           uuid.UUID `json:"jobId"`
	OrgID           uuid.UUID `json:"orgId"`
	VideoStorageKey string    `json:"videoStorageKey"`
	CallbackBaseURL string    `json:"callbackBaseUrl"`
	WebhookURL      string    `json:"webhookUrl,omitempty"`
}

// Notifier posts new jobs to the worker.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
}

// NewNotifier creates a notifier. A nil httpClient uses a client bounded by cfg.Timeout.
func NewNotifier(cfg Config, httpClient *http.Client) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Notifier{cfg: cfg, httpClient: httpClient}
}

// Configured reports whether a worker URL is set.
func (n *Notifier) Configured() bool {
	return n != nil && n.cfg.URL != ""
}

// Timeout is the configured per-notification timeout.
func (n *Notifier) Timeout() time.Duration {
	return n.cfg.Timeout
}

// Notify posts the job to the worker. The callback base URL is filled in from config.
func (n *Notifier) Notify(ctx context.Context, req AnalyzeRequest) error {
	if !n.Configured() {
		return ErrNotConfigured
	}
	if req.CallbackBaseURL == "" {
		req.CallbackBaseURL = n.cfg.CallbackBaseURL
	}

	start := time.Now()
	err := n.post(ctx, req)

	metrics := telemetry.GetMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.WorkerNotifyTotal.Add(ctx, 1, telemetry.Outcome(outcome))
	telemetry.RecordDuration(ctx, metrics.WorkerNotifyDuration, start, telemetry.Outcome(outcome))

	return err
}

func (n *Notifier) post(ctx context.Context, payload AnalyzeRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("worker returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	log.Debug().
		Str("job_id", payload.JobID.String()).
		Int("status", resp.StatusCode).
		Msg("Worker notified")

	return nil
}
