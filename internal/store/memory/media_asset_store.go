package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
)

// MediaAssetStore implements store.MediaAssetStore using in-memory storage.
type MediaAssetStore struct {
	mu sync.RWMutex

	assets       map[uuid.UUID]*models.MediaAsset // media_asset_id -> MediaAsset
	byStorageKey map[string]uuid.UUID
}

// NewMediaAssetStore creates a new in-memory media asset store.
func NewMediaAssetStore() *MediaAssetStore {
	return &MediaAssetStore{
		assets:       make(map[uuid.UUID]*models.MediaAsset),
		byStorageKey: make(map[string]uuid.UUID),
	}
}

// Create inserts a media asset.
func (s *MediaAssetStore) Create(ctx context.Context, asset *models.MediaAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assets[asset.MediaAssetID]; exists {
		return store.ErrMediaAssetExists
	}
	if _, exists := s.byStorageKey[asset.StorageKey]; exists {
		return store.ErrMediaAssetExists
	}

	clone := *asset
	s.assets[asset.MediaAssetID] = &clone
	s.byStorageKey[asset.StorageKey] = asset.MediaAssetID

	return nil
}

// Get retrieves a media asset scoped to an organization.
func (s *MediaAssetStore) Get(ctx context.Context, orgID, assetID uuid.UUID) (*models.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, exists := s.assets[assetID]
	if !exists || asset.OrgID != orgID {
		return nil, store.ErrMediaAssetNotFound
	}

	clone := *asset
	return &clone, nil
}

// Delete removes a media asset scoped to an organization.
func (s *MediaAssetStore) Delete(ctx context.Context, orgID, assetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, exists := s.assets[assetID]
	if !exists || asset.OrgID != orgID {
		return store.ErrMediaAssetNotFound
	}

	delete(s.byStorageKey, asset.StorageKey)
	delete(s.assets, assetID)

	return nil
}

// Len returns the number of stored assets.
func (s *MediaAssetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.assets)
}

func (s *MediaAssetStore) lookup(assetID uuid.UUID) *models.MediaAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, exists := s.assets[assetID]
	if !exists {
		return nil
	}

	clone := *asset
	return &clone
}
