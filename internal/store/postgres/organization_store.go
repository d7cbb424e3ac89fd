package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rs/zerolog/log"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT org_id, name, created_at, updated_at
		FROM organizations
		WHERE org_id = $1
	`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&org.OrgID,
		&org.Name,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return &org, nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertOrganization(ctx context.Context, db execer, org *models.Organization) error {
	query := `
		INSERT INTO organizations (
			org_id, name, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4
		)
	`

	_, err := db.Exec(ctx, query,
		org.OrgID,
		org.Name,
		org.CreatedAt,
		org.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	return nil
}

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

// ListByUser returns a user's memberships, oldest first.
func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT membership_id, user_id, org_id, role, created_at
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at ASC, membership_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.MembershipID, &m.UserID, &m.OrgID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// EnsureOwner returns the user's oldest membership, creating org and an OWNER
// membership if none exist. The user row is locked for the duration of the
// transaction so concurrent first logins serialize.
func (s *MembershipStore) EnsureOwner(ctx context.Context, userID uuid.UUID, org *models.Organization) (*models.Membership, *models.Organization, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE`, userID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, store.ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock user: %w", mapPostgresError(err))
	}

	var (
		membership models.Membership
		existing   models.Organization
	)
	err = tx.QueryRow(ctx, `
		SELECT m.membership_id, m.user_id, m.org_id, m.role, m.created_at,
		       o.org_id, o.name, o.created_at, o.updated_at
		FROM memberships m
		JOIN organizations o ON o.org_id = m.org_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC, m.membership_id ASC
		LIMIT 1
	`, userID).Scan(
		&membership.MembershipID,
		&membership.UserID,
		&membership.OrgID,
		&membership.Role,
		&membership.CreatedAt,
		&existing.OrgID,
		&existing.Name,
		&existing.CreatedAt,
		&existing.UpdatedAt,
	)
	if err == nil {
		return &membership, &existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("failed to get membership: %w", mapPostgresError(err))
	}

	if err := insertOrganization(ctx, tx, org); err != nil {
		return nil, nil, err
	}

	membership = models.Membership{
		MembershipID: uuid.Must(uuid.NewV7()),
		UserID:       userID,
		OrgID:        org.OrgID,
		Role:         models.RoleOwner,
		CreatedAt:    time.Now(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO memberships (
			membership_id, user_id, org_id, role, created_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`,
		membership.MembershipID,
		membership.UserID,
		membership.OrgID,
		membership.Role,
		membership.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, store.ErrMembershipAlreadyExists
		}
		return nil, nil, fmt.Errorf("failed to create membership: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit membership: %w", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("org_id", org.OrgID.String()).
		Msg("Created default organization and owner membership")

	orgClone := *org
	return &membership, &orgClone, nil
}
