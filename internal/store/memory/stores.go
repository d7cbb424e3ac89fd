package memory

import "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"

// NewStores wires every in-memory store together.
func NewStores() *store.Stores {
	users := NewUserStore()
	orgs := NewOrganizationStore()
	assets := NewMediaAssetStore()

	return &store.Stores{
		Users:         users,
		Organizations: orgs,
		Memberships:   NewMembershipStore(orgs),
		MediaAssets:   assets,
		Jobs:          NewJobStore(assets),
		APIKeys:       NewAPIKeyStore(users),
	}
}
