package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
)

// NewStores creates every PostgreSQL-backed store on a shared pool.
func NewStores(pool *pgxpool.Pool) *store.Stores {
	return &store.Stores{
		Users:         NewUserStore(pool),
		Organizations: NewOrganizationStore(pool),
		Memberships:   NewMembershipStore(pool),
		MediaAssets:   NewMediaAssetStore(pool),
		Jobs:          NewJobStore(pool),
		APIKeys:       NewAPIKeyStore(pool),
	}
}
