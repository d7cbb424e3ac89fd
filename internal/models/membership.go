package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles.
const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Membership links a user to an organization with a role.
type Membership struct {
	MembershipID uuid.UUID // UUIDv7
	UserID       uuid.UUID
	OrgID        uuid.UUID
	Role         string
	CreatedAt    time.Time
}
