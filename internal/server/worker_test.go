package server

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/stretchr/testify/require"
)

const testResult = `{"overall":{"dominantEmotion":"joy","dominantSentiment":"positive","escalationRisk":0.1,"emotionDistribution":{"joy":0.9},"sentimentDistribution":{"positive":1}},"utterances":[{"start":0,"end":1.5,"text":"hello","emotion":{"label":"joy","score":0.9},"sentiment":{"label":"positive","score":0.8}}],"modelVersion":"v3"}`

func TestWorker_JobUpdateLifecycle(t *testing.T) {
	ts := newTestServer(t)
	jobID, _ := ts.uploadAndAnalyze(t, "user_ada")

	status, body := ts.workerUpdate(t, map[string]any{"jobId": jobID, "status": "RUNNING", "progress": 40})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["ok"])
	job := body["job"].(map[string]any)
	require.Equal(t, "RUNNING", job["status"])
	require.EqualValues(t, 40, job["progress"])

	// progress only, status unchanged
	status, body = ts.workerUpdate(t, map[string]any{"jobId": jobID, "status": "RUNNING", "progress": 0})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 0, body["job"].(map[string]any)["progress"])

	_, meBody := ts.call(t, http.MethodGet, "/api/me", "user_ada", nil)
	orgID := uuid.MustParse(meBody["organization"].(map[string]any)["id"].(string))
	resultKey := storage.ResultKey(orgID, uuid.MustParse(jobID))
	ts.objects.Put(resultKey, "application/json", []byte(testResult))

	status, body = ts.workerUpdate(t, map[string]any{
		"jobId":         jobID,
		"status":        "SUCCEEDED",
		"progress":      100,
		"resultJsonKey": resultKey,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "SUCCEEDED", body["job"].(map[string]any)["status"])

	// results are inlined verbatim, unknown fields included
	status, body = ts.call(t, http.MethodGet, "/api/jobs/"+jobID, "user_ada", nil)
	require.Equal(t, http.StatusOK, status)
	results := body["job"].(map[string]any)["results"].(map[string]any)
	require.Equal(t, "v3", results["modelVersion"])

	// repeated terminal report is a no-op
	status, _ = ts.workerUpdate(t, map[string]any{"jobId": jobID, "status": "SUCCEEDED"})
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		name   string
		status string
	}{
		{name: "terminal to other terminal", status: "FAILED"},
		{name: "terminal to running", status: "RUNNING"},
		{name: "terminal to queued", status: "QUEUED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.workerUpdate(t, map[string]any{"jobId": jobID, "status": tt.status, "progress": 5})
			require.Equal(t, http.StatusConflict, status)
			require.Equal(t, "invalid-transition", body["error"])

			_, current := ts.call(t, http.MethodGet, "/api/jobs/"+jobID, "user_ada", nil)
			job := current["job"].(map[string]any)
			require.Equal(t, "SUCCEEDED", job["status"])
			require.EqualValues(t, 100, job["progress"])
		})
	}
}

func TestWorker_RunningToQueuedRejected(t *testing.T) {
	ts := newTestServer(t)
	jobID, _ := ts.uploadAndAnalyze(t, "user_ada")

	status, _ := ts.workerUpdate(t, map[string]any{"jobId": jobID, "status": "RUNNING"})
	require.Equal(t, http.StatusOK, status)

	status, body := ts.workerUpdate(t, map[string]any{"jobId": jobID, "status": "QUEUED"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid-transition", body["error"])
}

func TestWorker_JobUpdateWrongSecretLeavesJobUnchanged(t *testing.T) {
	ts := newTestServer(t)
	jobID, _ := ts.uploadAndAnalyze(t, "user_ada")

	for _, token := range []string{"", "wrong-secret", testWorkerSecret + "x"} {
		status, body := ts.call(t, http.MethodPost, "/api/worker/job-update", token, map[string]any{
			"jobId":    jobID,
			"status":   "SUCCEEDED",
			"progress": 100,
		})
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "unauthorized", body["error"])
	}

	status, body := ts.call(t, http.MethodGet, "/api/jobs/"+jobID, "user_ada", nil)
	require.Equal(t, http.StatusOK, status)
	job := body["job"].(map[string]any)
	require.Equal(t, "QUEUED", job["status"])
	require.EqualValues(t, 0, job["progress"])
}

func TestWorker_JobUpdateValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    any
		status  int
		code    string
		details map[string]any
	}{
		{
			name:    "missing fields",
			body:    map[string]any{},
			status:  http.StatusBadRequest,
			code:    "invalid-body",
			details: map[string]any{"jobId": "is required", "status": "is required"},
		},
		{
			name:    "unknown status",
			body:    map[string]any{"jobId": uuid.NewString(), "status": "DONE"},
			status:  http.StatusBadRequest,
			code:    "invalid-body",
			details: map[string]any{"status": "must be one of QUEUED RUNNING SUCCEEDED FAILED"},
		},
		{
			name:    "progress out of range",
			body:    map[string]any{"jobId": uuid.NewString(), "status": "RUNNING", "progress": 101},
			status:  http.StatusBadRequest,
			code:    "invalid-body",
			details: map[string]any{"progress": "must be at most 100"},
		},
		{
			name:   "not json",
			body:   "status=RUNNING",
			status: http.StatusBadRequest,
			code:   "invalid-body",
		},
		{
			name:   "unknown job",
			body:   map[string]any{"jobId": uuid.NewString(), "status": "RUNNING"},
			status: http.StatusNotFound,
			code:   "job-not-found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.call(t, http.MethodPost, "/api/worker/job-update", testWorkerSecret, tt.body)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.code, body["error"])
			if tt.details != nil {
				require.Equal(t, tt.details, body["details"])
			}
		})
	}
}

func TestWorker_SignedDownload(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.call(t, http.MethodPost, "/api/worker/signed-download", testWorkerSecret, map[string]string{
		"storageKey": "org/x/uploads/a.mp4",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, strings.Contains(body["signedUrl"].(string), "org/x/uploads/a.mp4"))

	status, body = ts.call(t, http.MethodPost, "/api/worker/signed-download", testWorkerSecret, map[string]string{})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "storage-key-required", body["error"])

	ts.objects.SignedDownloadErr = errors.New("storage down")
	status, body = ts.call(t, http.MethodPost, "/api/worker/signed-download", testWorkerSecret, map[string]string{
		"storageKey": "org/x/uploads/a.mp4",
	})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "signed-url-failed", body["error"])
}
