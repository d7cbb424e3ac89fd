package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is an organization-scoped credential for the public API.
// Only a keyed hash of the full token is stored; the token itself is shown once.
type APIKey struct {
	APIKeyID   uuid.UUID // UUIDv7
	OrgID      uuid.UUID
	UserID     uuid.UUID
	Name       string
	Prefix     string // safe to display, e.g. "vi_1a2b3c4d"
	KeyHash    string
	CreatedAt  time.Time
	LastUsedAt *time.Time

	// Populated by list reads.
	User *User
}
