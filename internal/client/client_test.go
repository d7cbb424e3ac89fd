package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{ServerURL: srv.URL + "/", APIKey: "vi_test"}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{APIKey: "vi_test"}, nil)
	require.Error(t, err)

	_, err = New(Config{ServerURL: "http://localhost:8080"}, nil)
	require.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	jobID := uuid.New()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/analyze", r.URL.Path)
		require.Equal(t, "Bearer vi_test", r.Header.Get("Authorization"))

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://cdn.example.com/a.mp4", req.VideoURL)
		require.True(t, req.Async)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"jobId":     jobID,
			"status":    "QUEUED",
			"statusUrl": "/api/v1/jobs/" + jobID.String(),
		})
	})

	resp, err := c.Analyze(t.Context(), &AnalyzeRequest{VideoURL: "https://cdn.example.com/a.mp4", Async: true})
	require.NoError(t, err)
	require.Equal(t, jobID, resp.JobID)
	require.Equal(t, "QUEUED", resp.Status)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		details map[string]string
		jobID   bool
	}{
		{
			name:    "validation",
			status:  http.StatusBadRequest,
			body:    `{"error":"Validation error","details":{"videoBase64":"is required"}}`,
			message: "Validation error",
			details: map[string]string{"videoBase64": "is required"},
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":"Invalid or missing API key"}`,
			message: "Invalid or missing API key",
		},
		{
			name:    "worker not configured",
			status:  http.StatusInternalServerError,
			body:    `{"success":false,"jobId":"` + uuid.NewString() + `","status":"FAILED","error":{"code":"CONFIG_ERROR","message":"Modal worker URL not configured"}}`,
			message: "Modal worker URL not configured",
			jobID:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			resp, err := c.Analyze(t.Context(), &AnalyzeRequest{VideoBase64: "AAAA"})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.message, apiErr.Message)
			require.Equal(t, tt.details, apiErr.Details)

			if tt.jobID {
				require.NotNil(t, resp)
				require.Equal(t, "FAILED", resp.Status)
			} else {
				require.Nil(t, resp)
			}
		})
	}
}

func TestWaitForJob(t *testing.T) {
	jobID := uuid.New()
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/jobs/"+jobID.String(), r.URL.Path)

		status := "RUNNING"
		if calls.Add(1) >= 3 {
			status = "SUCCEEDED"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jobId":    jobID,
			"status":   status,
			"progress": 50,
			"results":  map[string]any{"utterances": []any{}},
		})
	})

	job, err := c.WaitForJob(t.Context(), jobID, 5*time.Millisecond, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "SUCCEEDED", job.Status)
	require.EqualValues(t, 3, calls.Load())
	require.JSONEq(t, `{"utterances":[]}`, string(job.Results))
}

func TestWaitForJob_Timeout(t *testing.T) {
	jobID := uuid.New()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"jobId": jobID, "status": "QUEUED"})
	})

	job, err := c.WaitForJob(t.Context(), jobID, 10*time.Millisecond, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrStillProcessing)
	require.NotNil(t, job)
	require.Equal(t, "QUEUED", job.Status)
}

func TestWaitForJob_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Job not found"}`))
	})

	_, err := c.WaitForJob(t.Context(), uuid.New(), time.Millisecond, time.Second)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Job not found", apiErr.Message)
	require.EqualValues(t, 1, calls.Load())
}

func TestCachingHTTPClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	for _, hc := range []*http.Client{NewInMemoryCachingHTTPClient(), NewCachingHTTPClient(t.TempDir())} {
		calls.Store(0)
		for range 2 {
			resp, err := hc.Get(srv.URL + "/.well-known/jwks.json")
			require.NoError(t, err)
			_, err = io.ReadAll(resp.Body)
			require.NoError(t, err)
			_ = resp.Body.Close()
		}
		require.EqualValues(t, 1, calls.Load())
	}
}
