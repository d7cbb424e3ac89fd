package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a person authenticated through the external identity provider.
type User struct {
	UserID     uuid.UUID // UUIDv7
	ExternalID string    // identity provider subject, unique
	Email      string
	Name       *string
	AvatarURL  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile holds the mutable profile fields synced from the identity provider.
type Profile struct {
	Email     string
	Name      *string
	AvatarURL *string
}

// ApplyProfile copies any non-empty profile fields onto the user and reports
// whether anything changed.
func (u *User) ApplyProfile(p Profile) bool {
	changed := false

	if p.Email != "" && p.Email != u.Email {
		u.Email = p.Email
		changed = true
	}

	if p.Name != nil && *p.Name != "" && (u.Name == nil || *u.Name != *p.Name) {
		name := *p.Name
		u.Name = &name
		changed = true
	}

	if p.AvatarURL != nil && *p.AvatarURL != "" && (u.AvatarURL == nil || *u.AvatarURL != *p.AvatarURL) {
		avatar := *p.AvatarURL
		u.AvatarURL = &avatar
		changed = true
	}

	return changed
}
