package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the system.
// All media assets, jobs and API keys are scoped to exactly one organization.
type Organization struct {
	OrgID     uuid.UUID // UUIDv7
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultOrganizationName returns the name used for the personal organization
// created on a user's first login.
func DefaultOrganizationName(u *User) string {
	label := u.Email
	if u.Name != nil && *u.Name != "" {
		label = *u.Name
	}
	return label + "'s Organization"
}
