// Package apikeys issues, lists, revokes and validates organization API keys.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Issued is a newly created key together with its one-time plaintext token.
type Issued struct {
	Key   *models.APIKey
	Token string
}

// Service manages API keys.
type Service struct {
	keys        store.APIKeyStore
	users       store.UserStore
	orgs        store.OrganizationStore
	memberships store.MembershipStore
	hasher      *auth.KeyHasher
	now         func() time.Time
}

// NewService creates an API key service over the given stores.
func NewService(stores *store.Stores, hasher *auth.KeyHasher) *Service {
	return &Service{
		keys:        stores.APIKeys,
		users:       stores.Users,
		orgs:        stores.Organizations,
		memberships: stores.Memberships,
		hasher:      hasher,
		now:         time.Now,
	}
}

// DefaultName is the name given to keys created without one.
func DefaultName(now time.Time) string {
	return "API Key " + now.UTC().Format("2006-01-02")
}

// Issue creates a key for the caller's organization. The token is only available in the result.
func (s *Service) Issue(ctx context.Context, caller *auth.Caller, name string) (*Issued, error) {
	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName(now)
	}

	key := &models.APIKey{
		APIKeyID:  uuid.Must(uuid.NewV7()),
		OrgID:     caller.Org.OrgID,
		UserID:    caller.User.UserID,
		Name:      name,
		Prefix:    generated.Prefix,
		KeyHash:   s.hasher.Hash(generated.Token),
		CreatedAt: now,
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	log.Info().
		Str("api_key_id", key.APIKeyID.String()).
		Str("org_id", key.OrgID.String()).
		Str("prefix", key.Prefix).
		Msg("Issued API key")

	return &Issued{Key: key, Token: generated.Token}, nil
}

// List returns the organization's keys, newest first, without key material.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error) {
	keys, err := s.keys.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	for _, key := range keys {
		key.KeyHash = ""
	}
	return keys, nil
}

// Revoke deletes a key. Keys of other organizations yield store.ErrAPIKeyNotFound.
func (s *Service) Revoke(ctx context.Context, orgID, keyID uuid.UUID) error {
	if err := s.keys.Delete(ctx, orgID, keyID); err != nil {
		return err
	}

	log.Info().
		Str("api_key_id", keyID.String()).
		Str("org_id", orgID.String()).
		Msg("Revoked API key")

	return nil
}

// Validate resolves a presented token to its user and organization and stamps last use.
// Unknown or malformed tokens yield auth.ErrInvalidAPIKey.
func (s *Service) Validate(ctx context.Context, token string) (*auth.Caller, error) {
	caller, err := s.validate(ctx, token)

	outcome := "valid"
	switch {
	case errors.Is(err, auth.ErrInvalidAPIKey):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	telemetry.GetMetrics().APIKeyValidationsTotal.Add(ctx, 1, telemetry.Outcome(outcome))

	return caller, err
}

func (s *Service) validate(ctx context.Context, token string) (*auth.Caller, error) {
	prefix, err := auth.ParseAPIKey(token)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.GetByHash(ctx, s.hasher.Hash(token))
	if err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			return nil, auth.ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if key.Prefix != prefix {
		return nil, auth.ErrInvalidAPIKey
	}

	now := s.now()
	if err := s.keys.TouchLastUsed(ctx, key.APIKeyID, now); err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			// revoked between lookup and touch
			return nil, auth.ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to stamp api key: %w", err)
	}
	key.LastUsedAt = &now

	user, err := s.users.Get(ctx, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load api key user: %w", err)
	}

	org, err := s.orgs.Get(ctx, key.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load api key organization: %w", err)
	}

	role := ""
	memberships, err := s.memberships.ListByUser(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	for _, m := range memberships {
		if m.OrgID == org.OrgID {
			role = m.Role
			break
		}
	}

	key.KeyHash = ""
	return &auth.Caller{User: user, Org: org, Role: role, APIKey: key}, nil
}
