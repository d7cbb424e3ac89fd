package apikeys

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *store.Stores, *auth.Caller) {
	t.Helper()
	ctx := context.Background()

	stores := memory.NewStores()
	hasher, err := auth.NewKeyHasher("test-pepper")
	require.NoError(t, err)

	user := &models.User{
		UserID:     uuid.Must(uuid.NewV7()),
		ExternalID: "user_ada",
		Email:      "ada@example.com",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, stores.Users.Create(ctx, user))

	membership, org, err := stores.Memberships.EnsureOwner(ctx, user.UserID, &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Name:      models.DefaultOrganizationName(user),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	return NewService(stores, hasher), stores, &auth.Caller{User: user, Org: org, Role: membership.Role}
}

func TestService_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, stores, caller := setup(t)

	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	issued, err := svc.Issue(ctx, caller, "  ")
	require.NoError(t, err)
	require.Equal(t, "API Key 2026-03-14", issued.Key.Name)
	require.Regexp(t, `^vi_[0-9a-f]{8}_`, issued.Token)
	require.NotContains(t, issued.Key.KeyHash, issued.Token)

	t.Run("stored hash is not the token", func(t *testing.T) {
		keys, err := stores.APIKeys.ListByOrg(ctx, caller.Org.OrgID)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		require.NotEqual(t, issued.Token, keys[0].KeyHash)
		require.Nil(t, keys[0].LastUsedAt)
	})

	t.Run("valid token resolves caller and stamps last use", func(t *testing.T) {
		got, err := svc.Validate(ctx, issued.Token)
		require.NoError(t, err)
		require.Equal(t, caller.User.UserID, got.User.UserID)
		require.Equal(t, caller.Org.OrgID, got.Org.OrgID)
		require.Equal(t, models.RoleOwner, got.Role)
		require.Empty(t, got.APIKey.KeyHash)

		keys, err := svc.List(ctx, caller.Org.OrgID)
		require.NoError(t, err)
		require.NotNil(t, keys[0].LastUsedAt)
		require.True(t, keys[0].LastUsedAt.Equal(fixed))
		require.Empty(t, keys[0].KeyHash)
	})

	t.Run("invalid tokens", func(t *testing.T) {
		for _, token := range []string{
			"",
			"not-a-key",
			issued.Token + "x",
			issued.Key.Prefix + "_3mJr7AoUXx2Wqd",
		} {
			_, err := svc.Validate(ctx, token)
			require.ErrorIs(t, err, auth.ErrInvalidAPIKey, token)
		}
	})

	t.Run("token hashed with another pepper is rejected", func(t *testing.T) {
		other, err := auth.NewKeyHasher("other-pepper")
		require.NoError(t, err)

		_, err = NewService(stores, other).Validate(ctx, issued.Token)
		require.ErrorIs(t, err, auth.ErrInvalidAPIKey)
	})
}

func TestService_Revoke(t *testing.T) {
	ctx := context.Background()
	svc, _, caller := setup(t)

	issued, err := svc.Issue(ctx, caller, "ci")
	require.NoError(t, err)
	require.Equal(t, "ci", issued.Key.Name)

	t.Run("other org cannot revoke", func(t *testing.T) {
		err := svc.Revoke(ctx, uuid.Must(uuid.NewV7()), issued.Key.APIKeyID)
		require.ErrorIs(t, err, store.ErrAPIKeyNotFound)
	})

	t.Run("revoked key no longer validates", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, caller.Org.OrgID, issued.Key.APIKeyID))

		_, err := svc.Validate(ctx, issued.Token)
		require.ErrorIs(t, err, auth.ErrInvalidAPIKey)

		keys, err := svc.List(ctx, caller.Org.OrgID)
		require.NoError(t, err)
		require.Empty(t, keys)
	})

	t.Run("unknown key", func(t *testing.T) {
		err := svc.Revoke(ctx, caller.Org.OrgID, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrAPIKeyNotFound)
	})
}
