// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"menu-health-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// ProfileSchema creates the table the profile store reads from. Array-valued
// profile fields are stored as JSON text so any client can write them.
const ProfileSchema = `
CREATE TABLE IF NOT EXISTS user_health_profiles (
	user_id            TEXT PRIMARY KEY,
	chronic_conditions JSONB NOT NULL DEFAULT '[]',
	food_allergies     JSONB NOT NULL DEFAULT '[]',
	medications        JSONB NOT NULL DEFAULT '[]',
	diet_type          TEXT,
	permanent_dislikes JSONB NOT NULL DEFAULT '[]',
	activity_level     TEXT NOT NULL DEFAULT '',
	long_term_goals    JSONB NOT NULL DEFAULT '[]',
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// EnsureSchema applies ProfileSchema.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, ProfileSchema); err != nil {
		return fmt.Errorf("apply profile schema: %w", err)
	}
	return nil
}
