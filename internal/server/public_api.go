package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/jobs"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/media"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog"
)

const (
	defaultWaitSeconds = 120

	validationError = "Validation error"
)

// PublicAPIServer serves the API key authenticated v1 routes.
type PublicAPIServer struct {
	jobs  *jobs.Service
	media *media.Service
}

func NewPublicAPIServer(jobs *jobs.Service, media *media.Service) *PublicAPIServer {
	return &PublicAPIServer{
		jobs:  jobs,
		media: media,
	}
}

type analyzeRequest struct {
	VideoURL       string `json:"videoUrl" validate:"omitempty,url"`
	VideoBase64    string `json:"videoBase64" validate:"required_without=VideoURL"`
	FileName       string `json:"fileName"`
	MimeType       string `json:"mimeType"`
	WebhookURL     string `json:"webhookUrl" validate:"omitempty,url"`
	Async          bool   `json:"async"`
	TimeoutSeconds *int   `json:"timeoutSeconds" validate:"omitempty,min=10,max=300"`
}

func (r *analyzeRequest) timeout() time.Duration {
	if r.TimeoutSeconds == nil {
		return defaultWaitSeconds * time.Second
	}
	return time.Duration(*r.TimeoutSeconds) * time.Second
}

type jobError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type analyzeResponse struct {
	Success   bool            `json:"success"`
	JobID     uuid.UUID       `json:"jobId"`
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	StatusURL string          `json:"statusUrl,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	Error     *jobError       `json:"error,omitempty"`
}

// analyzeBodyLimit leaves room for the base64 form of the largest accepted video.
func (s *PublicAPIServer) analyzeBodyLimit() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(s.media.MaxBytes()))) + apihttp.MaxJSONBodyBytes
}

func statusURL(jobID uuid.UUID) string {
	return "/api/v1/jobs/" + jobID.String()
}

// Analyze ingests a video, creates a job and either returns immediately or
// waits for the job to finish.
func (s *PublicAPIServer) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := auth.CallerFromContext(ctx)
	logger := zerolog.Ctx(ctx)

	var body analyzeRequest
	if err := apihttp.DecodeJSON(w, r, &body, s.analyzeBodyLimit()); err != nil {
		writeBodyError(w, r, err, validationError)
		return
	}
	if body.MimeType == "" {
		body.MimeType = media.DefaultMimeType
	}

	asset, err := s.media.Ingest(ctx, caller.Org.OrgID, media.Source{
		URL:      body.VideoURL,
		Base64:   body.VideoBase64,
		MimeType: body.MimeType,
		FileName: body.FileName,
	})
	if err != nil {
		if errors.Is(err, media.ErrInvalidSource) {
			apihttp.WriteJSON(w, r, http.StatusBadRequest, map[string]any{
				"error":   validationError,
				"details": map[string]string{"video": err.Error()},
			})
			return
		}
		logger.Error().Err(err).Msg("Failed to ingest video")
		apihttp.WriteError(w, r, http.StatusBadGateway, "upload-failed")
		return
	}

	job, err := s.jobs.Create(ctx, jobs.CreateInput{
		OrgID:        caller.Org.OrgID,
		UserID:       caller.User.UserID,
		MediaAssetID: asset.MediaAssetID,
		WebhookURL:   body.WebhookURL,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrWorkerNotConfigured) {
			apihttp.WriteJSON(w, r, http.StatusInternalServerError, analyzeResponse{
				JobID:  job.JobID,
				Status: string(models.JobStatusFailed),
				Error:  &jobError{Code: models.JobErrorConfig, Message: jobs.WorkerNotConfiguredMessage},
			})
			return
		}
		writeInternalError(w, r, err, "Failed to create job")
		return
	}

	if body.Async {
		apihttp.WriteJSON(w, r, http.StatusOK, analyzeResponse{
			Success:   true,
			JobID:     job.JobID,
			Status:    string(job.Status),
			Message:   "Video analysis job created successfully",
			StatusURL: statusURL(job.JobID),
		})
		return
	}

	result, err := s.jobs.Wait(ctx, caller.Org.OrgID, job.JobID, body.timeout())
	if err != nil {
		if ctx.Err() != nil {
			logger.Info().Str("job_id", job.JobID.String()).Msg("Client went away while waiting for job")
			return
		}
		writeInternalError(w, r, err, "Failed to wait for job")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, newWaitResponse(result))
}

func newWaitResponse(result *jobs.WaitResult) analyzeResponse {
	job := result.Job

	switch result.Outcome {
	case jobs.WaitSucceeded:
		return analyzeResponse{
			Success: true,
			JobID:   job.JobID,
			Status:  string(models.JobStatusSucceeded),
			Results: job.Result,
		}
	case jobs.WaitFailed:
		jobErr := &jobError{}
		if job.ErrorCode != nil {
			jobErr.Code = *job.ErrorCode
		}
		if job.ErrorMessage != nil {
			jobErr.Message = *job.ErrorMessage
		}
		return analyzeResponse{
			JobID:  job.JobID,
			Status: string(models.JobStatusFailed),
			Error:  jobErr,
		}
	default:
		return analyzeResponse{
			JobID:     job.JobID,
			Status:    "PROCESSING",
			Message:   "Job is still processing. Check status at " + statusURL(job.JobID),
			StatusURL: statusURL(job.JobID),
		}
	}
}

// GetJob returns a job's status, and its results once it succeeded.
func (s *PublicAPIServer) GetJob(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	jobID, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		apihttp.WriteError(w, r, http.StatusNotFound, "Job not found")
		return
	}

	job, err := s.jobs.Get(r.Context(), caller.Org.OrgID, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			apihttp.WriteError(w, r, http.StatusNotFound, "Job not found")
			return
		}
		writeInternalError(w, r, err, "Failed to get job")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, newPublicJobView(job))
}
