package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog/log"
)

// MediaAssetStore implements store.MediaAssetStore using PostgreSQL.
type MediaAssetStore struct {
	pool *pgxpool.Pool
}

// NewMediaAssetStore creates a new PostgreSQL-backed media asset store.
func NewMediaAssetStore(pool *pgxpool.Pool) *MediaAssetStore {
	return &MediaAssetStore{
		pool: pool,
	}
}

// Create inserts a media asset.
func (s *MediaAssetStore) Create(ctx context.Context, asset *models.MediaAsset) error {
	query := `
		INSERT INTO media_assets (
			media_asset_id, org_id, storage_key, mime_type, filename, size_bytes, checksum, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		asset.MediaAssetID,
		asset.OrgID,
		asset.StorageKey,
		asset.MimeType,
		asset.Filename,
		asset.SizeBytes,
		asset.Checksum,
		asset.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrMediaAssetExists
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %w", store.ErrOrganizationNotFound, err)
		}
		return fmt.Errorf("failed to create media asset: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("media_asset_id", asset.MediaAssetID.String()).
		Str("storage_key", asset.StorageKey).
		Msg("Created media asset")

	return nil
}

// Get retrieves a media asset scoped to an organization.
func (s *MediaAssetStore) Get(ctx context.Context, orgID, assetID uuid.UUID) (*models.MediaAsset, error) {
	query := `
		SELECT media_asset_id, org_id, storage_key, mime_type, filename, size_bytes, checksum, created_at
		FROM media_assets
		WHERE media_asset_id = $1 AND org_id = $2
	`

	var asset models.MediaAsset
	err := s.pool.QueryRow(ctx, query, assetID, orgID).Scan(
		&asset.MediaAssetID,
		&asset.OrgID,
		&asset.StorageKey,
		&asset.MimeType,
		&asset.Filename,
		&asset.SizeBytes,
		&asset.Checksum,
		&asset.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMediaAssetNotFound
		}
		return nil, fmt.Errorf("failed to get media asset: %w", mapPostgresError(err))
	}

	return &asset, nil
}

// Delete removes a media asset scoped to an organization.
func (s *MediaAssetStore) Delete(ctx context.Context, orgID, assetID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM media_assets WHERE media_asset_id = $1 AND org_id = $2`, assetID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete media asset: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrMediaAssetNotFound
	}

	log.Debug().
		Str("media_asset_id", assetID.String()).
		Msg("Deleted media asset")

	return nil
}
