package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/jobs"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/media"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog"
)

// recentJobsLimit is how many jobs the dashboard stats include.
const recentJobsLimit = 5

// DashboardServer serves the session-authenticated dashboard routes.
type DashboardServer struct {
	jobs  *jobs.Service
	media *media.Service
}

func NewDashboardServer(jobs *jobs.Service, media *media.Service) *DashboardServer {
	return &DashboardServer{
		jobs:  jobs,
		media: media,
	}
}

type uploadURLRequest struct {
	MimeType string `json:"mimeType" validate:"required"`
	Filename string `json:"filename" validate:"required"`
}

type uploadURLResponse struct {
	MediaAssetID uuid.UUID `json:"mediaAssetId"`
	StorageKey   string    `json:"storageKey"`
	SignedURL    string    `json:"signedUrl"`
	Token        string    `json:"token"`
}

// CreateUploadURL records a pending media asset and returns a signed upload URL for it.
func (s *DashboardServer) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var body uploadURLRequest
	if err := apihttp.DecodeJSON(w, r, &body, apihttp.MaxJSONBodyBytes); err != nil {
		writeBodyError(w, r, err, "invalid-body")
		return
	}

	upload, err := s.media.CreateUploadURL(r.Context(), caller.Org.OrgID, body.MimeType, body.Filename)
	if err != nil {
		if errors.Is(err, media.ErrUpstream) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to create signed upload URL")
			apihttp.WriteError(w, r, http.StatusInternalServerError, "upload-url-failed")
			return
		}
		writeInternalError(w, r, err, "Failed to create media asset")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, uploadURLResponse{
		MediaAssetID: upload.MediaAssetID,
		StorageKey:   upload.StorageKey,
		SignedURL:    upload.SignedURL,
		Token:        upload.Token,
	})
}

type analyzeJobRequest struct {
	MediaAssetID string `json:"mediaAssetId" validate:"required,uuid"`
	StorageKey   string `json:"storageKey"`
}

type analyzeJobResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status string    `json:"status"`
}

// Analyze creates a job for an uploaded media asset.
func (s *DashboardServer) Analyze(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var body analyzeJobRequest
	if err := apihttp.DecodeJSON(w, r, &body, apihttp.MaxJSONBodyBytes); err != nil {
		writeBodyError(w, r, err, "invalid-body")
		return
	}

	job, err := s.jobs.Create(r.Context(), jobs.CreateInput{
		OrgID:        caller.Org.OrgID,
		UserID:       caller.User.UserID,
		MediaAssetID: uuid.MustParse(body.MediaAssetID),
		StorageKey:   body.StorageKey,
	})
	switch {
	case errors.Is(err, store.ErrMediaAssetNotFound):
		apihttp.WriteError(w, r, http.StatusNotFound, "media-asset-not-found")
		return
	case errors.Is(err, jobs.ErrStorageKeyMismatch):
		apihttp.WriteError(w, r, http.StatusBadRequest, "storage-key-mismatch")
		return
	case errors.Is(err, jobs.ErrWorkerNotConfigured):
		apihttp.WriteError(w, r, http.StatusInternalServerError, "worker-not-configured")
		return
	case err != nil:
		writeInternalError(w, r, err, "Failed to create job")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, analyzeJobResponse{
		JobID:  job.JobID,
		Status: string(job.Status),
	})
}

// ListJobs returns the organization's recent jobs. The optional limit query
// parameter is clamped to jobs.MaxListLimit.
func (s *DashboardServer) ListJobs(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			apihttp.WriteError(w, r, http.StatusBadRequest, "invalid-limit")
			return
		}
		limit = n
	}

	list, err := s.jobs.List(r.Context(), caller.Org.OrgID, limit)
	if err != nil {
		writeInternalError(w, r, err, "Failed to list jobs")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, map[string]any{"jobs": newJobViews(list)})
}

// GetJob returns one of the organization's jobs with its results inlined when it succeeded.
func (s *DashboardServer) GetJob(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	jobID, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		apihttp.WriteError(w, r, http.StatusNotFound, "job-not-found")
		return
	}

	job, err := s.jobs.Get(r.Context(), caller.Org.OrgID, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			apihttp.WriteError(w, r, http.StatusNotFound, "job-not-found")
			return
		}
		writeInternalError(w, r, err, "Failed to get job")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, map[string]any{"job": newJobView(job)})
}

type statsResponse struct {
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	InProgress int        `json:"inProgress"`
	RecentJobs []*jobView `json:"recentJobs"`
}

// Stats returns job counts and the most recent jobs for the dashboard overview.
func (s *DashboardServer) Stats(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	stats, err := s.jobs.Stats(r.Context(), caller.Org.OrgID)
	if err != nil {
		writeInternalError(w, r, err, "Failed to compute job stats")
		return
	}

	recent, err := s.jobs.List(r.Context(), caller.Org.OrgID, recentJobsLimit)
	if err != nil {
		writeInternalError(w, r, err, "Failed to list recent jobs")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, statsResponse{
		Total:      stats.Total,
		Succeeded:  stats.Succeeded,
		Failed:     stats.Failed,
		InProgress: stats.InProgress,
		RecentJobs: newJobViews(recent),
	})
}

type meResponse struct {
	User struct {
		ID        uuid.UUID `json:"id"`
		Email     string    `json:"email"`
		Name      *string   `json:"name"`
		AvatarURL *string   `json:"avatarUrl"`
	} `json:"user"`
	Organization struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"organization"`
	Role string `json:"role"`
}

// Me returns the resolved user, organization and role.
func (s *DashboardServer) Me(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var resp meResponse
	resp.User.ID = caller.User.UserID
	resp.User.Email = caller.User.Email
	resp.User.Name = caller.User.Name
	resp.User.AvatarURL = caller.User.AvatarURL
	resp.Organization.ID = caller.Org.OrgID
	resp.Organization.Name = caller.Org.Name
	resp.Role = caller.Role

	apihttp.WriteJSON(w, r, http.StatusOK, resp)
}
