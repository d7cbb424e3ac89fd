package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/jobs"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog"
)

// WorkerServer serves the callback routes used by the inference worker.
type WorkerServer struct {
	jobs    *jobs.Service
	objects storage.ObjectStore
}

func NewWorkerServer(jobs *jobs.Service, objects storage.ObjectStore) *WorkerServer {
	return &WorkerServer{
		jobs:    jobs,
		objects: objects,
	}
}

type jobUpdateRequest struct {
	JobID         string  `json:"jobId" validate:"required,uuid"`
	Status        string  `json:"status" validate:"required,oneof=QUEUED RUNNING SUCCEEDED FAILED"`
	Progress      *int    `json:"progress" validate:"omitempty,min=0,max=100"`
	ErrorCode     *string `json:"errorCode"`
	ErrorMessage  *string `json:"errorMessage"`
	ResultJSONKey *string `json:"resultJsonKey"`
}

// JobUpdate applies a status or progress report from the worker. Only the
// fields present in the body are written.
func (s *WorkerServer) JobUpdate(w http.ResponseWriter, r *http.Request) {
	var body jobUpdateRequest
	if err := apihttp.DecodeJSON(w, r, &body, apihttp.MaxJSONBodyBytes); err != nil {
		writeBodyError(w, r, err, "invalid-body")
		return
	}

	status, err := models.ParseJobStatus(body.Status)
	if err != nil {
		apihttp.WriteJSON(w, r, http.StatusBadRequest, map[string]any{
			"error":   "invalid-body",
			"details": map[string]string{"status": err.Error()},
		})
		return
	}

	job, err := s.jobs.ApplyUpdate(r.Context(), &models.JobUpdate{
		JobID:         uuid.MustParse(body.JobID),
		Status:        status,
		Progress:      body.Progress,
		ErrorCode:     body.ErrorCode,
		ErrorMessage:  body.ErrorMessage,
		ResultJSONKey: body.ResultJSONKey,
	})
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		apihttp.WriteError(w, r, http.StatusNotFound, "job-not-found")
		return
	case errors.Is(err, store.ErrInvalidTransition):
		apihttp.WriteError(w, r, http.StatusConflict, "invalid-transition")
		return
	case err != nil:
		writeInternalError(w, r, err, "Failed to update job")
		return
	}

	zerolog.Ctx(r.Context()).Debug().
		Str("job_id", job.JobID.String()).
		Str("status", string(job.Status)).
		Int("progress", job.Progress).
		Msg("Applied worker update")

	apihttp.WriteJSON(w, r, http.StatusOK, map[string]any{"ok": true, "job": newJobView(job)})
}

type signedDownloadRequest struct {
	StorageKey string `json:"storageKey" validate:"required"`
}

// SignedDownload issues a short-lived download URL for a stored object.
func (s *WorkerServer) SignedDownload(w http.ResponseWriter, r *http.Request) {
	var body signedDownloadRequest
	if err := apihttp.DecodeJSON(w, r, &body, apihttp.MaxJSONBodyBytes); err != nil {
		var ve *apihttp.ValidationError
		if errors.As(err, &ve) {
			apihttp.WriteError(w, r, http.StatusBadRequest, "storage-key-required")
			return
		}
		writeBodyError(w, r, err, "invalid-body")
		return
	}

	url, err := s.objects.SignedDownloadURL(r.Context(), body.StorageKey, storage.WorkerDownloadTTL)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("key", body.StorageKey).Msg("Failed to create signed download URL")
		apihttp.WriteError(w, r, http.StatusInternalServerError, "signed-url-failed")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, map[string]string{"signedUrl": url})
}
