package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog/log"
)

// APIKeyStore implements store.APIKeyStore using PostgreSQL.
type APIKeyStore struct {
	pool *pgxpool.Pool
}

// NewAPIKeyStore creates a new PostgreSQL-backed API key store.
func NewAPIKeyStore(pool *pgxpool.Pool) *APIKeyStore {
	return &APIKeyStore{
		pool: pool,
	}
}

// Create inserts an API key.
func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (
			api_key_id, org_id, user_id, name, prefix, key_hash, created_at, last_used_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		key.APIKeyID,
		key.OrgID,
		key.UserID,
		key.Name,
		key.Prefix,
		key.KeyHash,
		key.CreatedAt,
		key.LastUsedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAPIKeyAlreadyExists
		}
		return fmt.Errorf("failed to create api key: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("api_key_id", key.APIKeyID.String()).
		Str("prefix", key.Prefix).
		Msg("Created API key")

	return nil
}

// ListByOrg returns an organization's keys, newest first.
func (s *APIKeyStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error) {
	query := `
		SELECT k.api_key_id, k.org_id, k.user_id, k.name, k.prefix, k.key_hash, k.created_at, k.last_used_at,
		       u.user_id, u.external_id, u.email, u.name, u.avatar_url, u.created_at, u.updated_at
		FROM api_keys k
		JOIN users u ON u.user_id = k.user_id
		WHERE k.org_id = $1
		ORDER BY k.created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var (
			key  models.APIKey
			user models.User
		)
		err := rows.Scan(
			&key.APIKeyID,
			&key.OrgID,
			&key.UserID,
			&key.Name,
			&key.Prefix,
			&key.KeyHash,
			&key.CreatedAt,
			&key.LastUsedAt,
			&user.UserID,
			&user.ExternalID,
			&user.Email,
			&user.Name,
			&user.AvatarURL,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		key.User = &user
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return keys, nil
}

// GetByHash looks a key up by its hash.
func (s *APIKeyStore) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `
		SELECT api_key_id, org_id, user_id, name, prefix, key_hash, created_at, last_used_at
		FROM api_keys
		WHERE key_hash = $1
	`

	var key models.APIKey
	err := s.pool.QueryRow(ctx, query, keyHash).Scan(
		&key.APIKeyID,
		&key.OrgID,
		&key.UserID,
		&key.Name,
		&key.Prefix,
		&key.KeyHash,
		&key.CreatedAt,
		&key.LastUsedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", mapPostgresError(err))
	}

	return &key, nil
}

// TouchLastUsed stamps the key's last used time.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	result, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE api_key_id = $1`, keyID, at)
	if err != nil {
		return fmt.Errorf("failed to update api key last used: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrAPIKeyNotFound
	}

	return nil
}

// Delete removes a key scoped to an organization.
func (s *APIKeyStore) Delete(ctx context.Context, orgID, keyID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE api_key_id = $1 AND org_id = $2`, keyID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrAPIKeyNotFound
	}

	log.Debug().
		Str("api_key_id", keyID.String()).
		Msg("Deleted API key")

	return nil
}
