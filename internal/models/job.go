package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Error codes recorded on jobs by this service. Workers supply their own codes.
const (
	JobErrorConfig = "CONFIG_ERROR"
)

// AllJobStatuses lists every valid status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusSucceeded,
	JobStatusFailed,
}

// ParseJobStatus converts a string into a JobStatus, rejecting unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !slices.Contains(AllJobStatuses, status) {
		return "", fmt.Errorf("unknown job status: %q", s)
	}
	return status, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// AllowedPredecessors returns the statuses a job may be in for a transition to s.
//
// QUEUED only follows QUEUED, RUNNING follows QUEUED or RUNNING, and the
// terminal states follow any non-terminal state.
func (s JobStatus) AllowedPredecessors() []JobStatus {
	switch s {
	case JobStatusQueued:
		return []JobStatus{JobStatusQueued}
	case JobStatusRunning:
		return []JobStatus{JobStatusQueued, JobStatusRunning}
	case JobStatusSucceeded, JobStatusFailed:
		return []JobStatus{JobStatusQueued, JobStatusRunning}
	default:
		return nil
	}
}

// CanTransition reports whether a job in status from may move to status to.
func CanTransition(from, to JobStatus) bool {
	return slices.Contains(to.AllowedPredecessors(), from)
}

// Job is a unit of requested video analysis work.
type Job struct {
	JobID         uuid.UUID // UUIDv7
	OrgID         uuid.UUID
	UserID        uuid.UUID
	MediaAssetID  uuid.UUID
	Status        JobStatus
	Progress      int
	ErrorCode     *string
	ErrorMessage  *string
	ResultJSONKey *string
	WebhookURL    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Populated by reads that join or fetch related data.
	MediaAsset *MediaAsset
	Result     json.RawMessage
}

// JobUpdate is a partial update reported by the worker. Nil fields are left untouched.
type JobUpdate struct {
	JobID         uuid.UUID
	Status        JobStatus
	Progress      *int
	ErrorCode     *string
	ErrorMessage  *string
	ResultJSONKey *string
}

// Apply writes the update's fields onto the job.
func (u *JobUpdate) Apply(job *Job, now time.Time) {
	job.Status = u.Status
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.ErrorCode != nil {
		job.ErrorCode = u.ErrorCode
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = u.ErrorMessage
	}
	if u.ResultJSONKey != nil {
		job.ResultJSONKey = u.ResultJSONKey
	}
	job.UpdatedAt = now
}

// JobStats summarises an organization's jobs for the dashboard.
type JobStats struct {
	Total      int
	Succeeded  int
	Failed     int
	InProgress int // QUEUED + RUNNING
}
