// Package identity maps identity provider sessions onto local users and organizations.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog/log"
)

// ErrUnauthenticated is returned when a session cannot be mapped to a user.
var ErrUnauthenticated = auth.ErrUnauthenticated

// ProfileFetcher looks up a user's profile at the identity provider.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, externalID string) (*models.Profile, error)
}

// Resolver finds or lazily creates the user, organization and membership behind a session.
type Resolver struct {
	users       store.UserStore
	memberships store.MembershipStore
	profiles    ProfileFetcher
	now         func() time.Time
}

// NewResolver creates a resolver. profiles may be nil, in which case sessions
// must carry an email claim for first-time users.
func NewResolver(stores *store.Stores, profiles ProfileFetcher) *Resolver {
	return &Resolver{
		users:       stores.Users,
		memberships: stores.Memberships,
		profiles:    profiles,
		now:         time.Now,
	}
}

// Resolve implements auth.SessionResolver.
func (r *Resolver) Resolve(ctx context.Context, session *auth.Session) (*auth.Caller, error) {
	if session == nil || session.Subject == "" {
		return nil, ErrUnauthenticated
	}

	user, err := r.users.GetByExternalID(ctx, session.Subject)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		user, err = r.createUser(ctx, session)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	default:
		r.syncProfile(ctx, user, session)
	}

	now := r.now()
	membership, org, err := r.memberships.EnsureOwner(ctx, user.UserID, &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Name:      models.DefaultOrganizationName(user),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}

	return &auth.Caller{User: user, Org: org, Role: membership.Role}, nil
}

func (r *Resolver) createUser(ctx context.Context, session *auth.Session) (*models.User, error) {
	profile, err := r.profile(ctx, session)
	if err != nil {
		return nil, err
	}

	now := r.now()
	user := &models.User{
		UserID:     uuid.Must(uuid.NewV7()),
		ExternalID: session.Subject,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	user.ApplyProfile(*profile)

	err = r.users.Create(ctx, user)
	if errors.Is(err, store.ErrUserAlreadyExists) {
		// a concurrent request for the same subject won the insert
		existing, getErr := r.users.GetByExternalID(ctx, session.Subject)
		if getErr != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Str("user_id", user.UserID.String()).
		Str("external_id", user.ExternalID).
		Msg("Created user on first login")

	return user, nil
}

func (r *Resolver) profile(ctx context.Context, session *auth.Session) (*models.Profile, error) {
	if session.HasProfile() {
		return sessionProfile(session), nil
	}

	if r.profiles == nil {
		return nil, fmt.Errorf("%w: session has no email and no profile source is configured", ErrUnauthenticated)
	}

	profile, err := r.profiles.FetchProfile(ctx, session.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: identity provider returned no email", ErrUnauthenticated)
	}

	return profile, nil
}

func (r *Resolver) syncProfile(ctx context.Context, user *models.User, session *auth.Session) {
	if !user.ApplyProfile(*sessionProfile(session)) {
		return
	}

	if err := r.users.Update(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.UserID.String()).Msg("Failed to sync user profile")
	}
}

func sessionProfile(session *auth.Session) *models.Profile {
	profile := &models.Profile{Email: session.Email}
	if session.Name != "" {
		profile.Name = &session.Name
	}
	if session.AvatarURL != "" {
		profile.AvatarURL = &session.AvatarURL
	}
	return profile
}
