package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig holds database connection configuration. URL, when set, wins
// over the individual fields.
type PoolConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	PoolSize int
	SSLMode  string // disable, require, verify-ca, verify-full
}

// Enabled reports whether any database was configured.
func (c PoolConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// ConnectionString returns a PostgreSQL connection string.
func (c PoolConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// NewPool creates a new connection pool with the given configuration.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
