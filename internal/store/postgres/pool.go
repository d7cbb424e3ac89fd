package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const defaultApplicationName = "videoinsight"

// PoolConfig configures the connection pool shared by every store.
//
// Job reads from synchronous analyze requests arrive every poll interval per
// waiting client but release their connection between polls, so the pool is
// sized for concurrent statements rather than waiting requests.
type PoolConfig struct {
	ConnString string

	// MaxConns defaults to 20, MinConns to 2.
	MaxConns int32
	MinConns int32

	// MaxConnLifetime defaults to 1h, MaxConnIdleTime to 15m.
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// HealthCheckPeriod defaults to 1m.
	HealthCheckPeriod time.Duration

	// ConnectTimeout bounds dialing a new connection. Defaults to 10s.
	ConnectTimeout time.Duration

	// StatementTimeout is sent as the statement_timeout session parameter so
	// a stuck query cannot outlive the poll that issued it. Defaults to 5s,
	// negative disables it.
	StatementTimeout time.Duration

	// ApplicationName shows up in pg_stat_activity. Defaults to "videoinsight".
	ApplicationName string
}

// Validate checks that the pool configuration is usable.
func (c *PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns %d exceeds max conns %d", c.MinConns, c.MaxConns)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *PoolConfig) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 15 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.StatementTimeout == 0 {
		c.StatementTimeout = 5 * time.Second
	}
	if c.ApplicationName == "" {
		c.ApplicationName = defaultApplicationName
	}
}

// pgxConfig turns the pool configuration into a pgxpool config without connecting.
func (c *PoolConfig) pgxConfig() (*pgxpool.Config, error) {
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = c.MaxConns
	poolConfig.MinConns = c.MinConns
	poolConfig.MaxConnLifetime = c.MaxConnLifetime
	poolConfig.MaxConnIdleTime = c.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = c.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = c.ConnectTimeout

	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = c.ApplicationName
	if c.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)
	}

	return poolConfig, nil
}

// NewPool creates the connection pool and pings the database.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("pool config is required")
	}

	poolConfig, err := cfg.pgxConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Dur("statement_timeout", cfg.StatementTimeout).
		Msg("PostgreSQL pool ready")

	return pool, nil
}
