package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/stretchr/testify/require"
)

func newOrg(name string) *models.Organization {
	now := time.Now()
	return &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrganizationStore(t *testing.T) {
	ctx := context.Background()
	orgs := NewOrganizationStore()
	members := NewMembershipStore(orgs)

	_, created, err := members.EnsureOwner(ctx, uuid.Must(uuid.NewV7()), newOrg("Acme"))
	require.NoError(t, err)

	got, err := orgs.Get(ctx, created.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Name)

	got.Name = "changed"
	again, err := orgs.Get(ctx, created.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Acme", again.Name)

	_, err = orgs.Get(ctx, uuid.Must(uuid.NewV7()))
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
}

func TestMembershipStore_EnsureOwner(t *testing.T) {
	ctx := context.Background()
	orgs := NewOrganizationStore()
	st := NewMembershipStore(orgs)
	userID := uuid.Must(uuid.NewV7())

	first, firstOrg, err := st.EnsureOwner(ctx, userID, newOrg("first"))
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, first.Role)
	require.Equal(t, "first", firstOrg.Name)

	again, againOrg, err := st.EnsureOwner(ctx, userID, newOrg("second"))
	require.NoError(t, err)
	require.Equal(t, first.MembershipID, again.MembershipID)
	require.Equal(t, firstOrg.OrgID, againOrg.OrgID)

	memberships, err := st.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
}

func TestMembershipStore_EnsureOwnerConcurrent(t *testing.T) {
	ctx := context.Background()
	orgs := NewOrganizationStore()
	st := NewMembershipStore(orgs)
	userID := uuid.Must(uuid.NewV7())

	var wg sync.WaitGroup
	orgIDs := make([]uuid.UUID, 10)
	errs := make([]error, 10)
	for i := range orgIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, org, err := st.EnsureOwner(ctx, userID, newOrg("personal"))
			errs[i] = err
			if err == nil {
				orgIDs[i] = org.OrgID
			}
		}(i)
	}
	wg.Wait()

	for i, id := range orgIDs {
		require.NoError(t, errs[i])
		require.Equal(t, orgIDs[0], id)
	}
	require.Len(t, orgs.organizations, 1)
}
