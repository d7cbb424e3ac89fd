package client

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

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrStillProcessing is returned by WaitForJob when the job did not finish in time.
var ErrStillProcessing = errors.New("job is still processing")

// Config holds common client configuration
type Config struct {
	ServerURL string
	APIKey    string
	Timeout   time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   6 * time.Minute,
	}
}

// Client calls the public v1 API with an API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client. A nil httpClient uses one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

type AnalyzeRequest struct {
	VideoURL       string `json:"videoUrl,omitempty"`
	VideoBase64    string `json:"videoBase64,omitempty"`
	FileName       string `json:"fileName,omitempty"`
	MimeType       string `json:"mimeType,omitempty"`
	WebhookURL     string `json:"webhookUrl,omitempty"`
	Async          bool   `json:"async"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AnalyzeResponse struct {
	Success   bool            `json:"success"`
	JobID     uuid.UUID       `json:"jobId"`
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	StatusURL string          `json:"statusUrl,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	Error     *JobError       `json:"error,omitempty"`
}

type MediaAsset struct {
	ID         uuid.UUID `json:"id"`
	StorageKey string    `json:"storageKey"`
	MimeType   string    `json:"mimeType"`
	Filename   string    `json:"filename,omitempty"`
	SizeBytes  int64     `json:"sizeBytes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Job is the public view of an analysis job.
type Job struct {
	JobID      uuid.UUID       `json:"jobId"`
	Status     string          `json:"status"`
	Progress   int             `json:"progress"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Error      *JobError       `json:"error"`
	MediaAsset *MediaAsset     `json:"mediaAsset"`
	Results    json.RawMessage `json:"results"`
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool {
	return j.Status == "SUCCEEDED" || j.Status == "FAILED"
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	parts := make([]string, 0, len(e.Details))
	for field, msg := range e.Details {
		parts = append(parts, field+" "+msg)
	}
	return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, ", "))
}

// Analyze submits a video. The server may answer a sync request with a
// FAILED or PROCESSING body, so callers should inspect Status.
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/analyze", req, &resp)
	if err != nil {
		var apiErr *APIError
		// a job was created but could not be dispatched
		if errors.As(err, &apiErr) && resp.JobID != uuid.Nil {
			return &resp, err
		}
		return nil, err
	}
	return &resp, nil
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForJob polls until the job is terminal or maxWait elapses, in which
// case the last observed job is returned with ErrStillProcessing.
func (c *Client) WaitForJob(ctx context.Context, jobID uuid.UUID, interval, maxWait time.Duration) (*Job, error) {
	var last *Job

	job, err := backoff.Retry(ctx, func() (*Job, error) {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		last = job
		if !job.Terminal() {
			log.Debug().Str("job_id", jobID.String()).Str("status", job.Status).Int("progress", job.Progress).Msg("Job not finished")
			return nil, ErrStillProcessing
		}
		return job, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(maxWait),
	)
	if err != nil {
		if errors.Is(err, ErrStillProcessing) {
			return last, ErrStillProcessing
		}
		return nil, err
	}

	return job, nil
}

type errorBody struct {
	Error   any               `json:"error"`
	Details map[string]string `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}

		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			switch v := eb.Error.(type) {
			case string:
				apiErr.Message = v
			case map[string]any:
				// analyze failures carry {code, message}
				if msg, ok := v["message"].(string); ok {
					apiErr.Message = msg
				}
			}
			apiErr.Details = eb.Details
		}
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
