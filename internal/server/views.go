package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
)

type mediaAssetView struct {
	ID         uuid.UUID `json:"id"`
	StorageKey string    `json:"storageKey"`
	MimeType   string    `json:"mimeType"`
	Filename   *string   `json:"filename,omitempty"`
	SizeBytes  *int64    `json:"sizeBytes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newMediaAssetView(asset *models.MediaAsset) *mediaAssetView {
	if asset == nil {
		return nil
	}
	return &mediaAssetView{
		ID:         asset.MediaAssetID,
		StorageKey: asset.StorageKey,
		MimeType:   asset.MimeType,
		Filename:   asset.Filename,
		SizeBytes:  asset.SizeBytes,
		CreatedAt:  asset.CreatedAt,
	}
}

// jobView is the dashboard representation of a job.
type jobView struct {
	ID            uuid.UUID       `json:"id"`
	OrgID         uuid.UUID       `json:"orgId"`
	UserID        uuid.UUID       `json:"userId"`
	MediaAssetID  uuid.UUID       `json:"mediaAssetId"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	ErrorCode     *string         `json:"errorCode"`
	ErrorMessage  *string         `json:"errorMessage"`
	ResultJSONKey *string         `json:"resultJsonKey"`
	WebhookURL    *string         `json:"webhookUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	MediaAsset    *mediaAssetView `json:"mediaAsset,omitempty"`
	Results       json.RawMessage `json:"results,omitempty"`
}

func newJobView(job *models.Job) *jobView {
	return &jobView{
		ID:            job.JobID,
		OrgID:         job.OrgID,
		UserID:        job.UserID,
		MediaAssetID:  job.MediaAssetID,
		Status:        string(job.Status),
		Progress:      job.Progress,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
		ResultJSONKey: job.ResultJSONKey,
		WebhookURL:    job.WebhookURL,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		MediaAsset:    newMediaAssetView(job.MediaAsset),
		Results:       job.Result,
	}
}

func newJobViews(jobs []*models.Job) []*jobView {
	views := make([]*jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	return views
}

type jobErrorView struct {
	Code    *string `json:"code"`
	Message *string `json:"message"`
}

// publicJobView is the public API representation of a job. Error and results
// are always present and null when they do not apply.
type publicJobView struct {
	JobID      uuid.UUID       `json:"jobId"`
	Status     string          `json:"status"`
	Progress   int             `json:"progress"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Error      *jobErrorView   `json:"error"`
	MediaAsset *mediaAssetView `json:"mediaAsset"`
	Results    json.RawMessage `json:"results"`
}

func newPublicJobView(job *models.Job) *publicJobView {
	view := &publicJobView{
		JobID:      job.JobID,
		Status:     string(job.Status),
		Progress:   job.Progress,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
		MediaAsset: newMediaAssetView(job.MediaAsset),
		Results:    job.Result,
	}
	if job.Status == models.JobStatusFailed {
		view.Error = &jobErrorView{Code: job.ErrorCode, Message: job.ErrorMessage}
	}
	return view
}

type apiKeyUserView struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

type apiKeyView struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Prefix     string          `json:"prefix"`
	CreatedAt  time.Time       `json:"createdAt"`
	LastUsedAt *time.Time      `json:"lastUsedAt"`
	User       *apiKeyUserView `json:"user,omitempty"`
}

func newAPIKeyView(key *models.APIKey) *apiKeyView {
	view := &apiKeyView{
		ID:         key.APIKeyID,
		Name:       key.Name,
		Prefix:     key.Prefix,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
	if key.User != nil {
		view.User = &apiKeyUserView{Name: key.User.Name, Email: key.User.Email}
	}
	return view
}
