package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

// Registry resolves agent endpoints registered by the deployment tooling
// under the fixed "/agents/{name}" key convention.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *Registry) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across agent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS agent_endpoints (
	key TEXT PRIMARY KEY,
	endpoint TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure agent_endpoints: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Register upserts one agent endpoint under its directory key.
func (r *Registry) Register(ctx context.Context, key, endpoint string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO agent_endpoints (key, endpoint, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET endpoint = EXCLUDED.endpoint, updated_at = EXCLUDED.updated_at
`, key, endpoint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("register agent endpoint: %w", err)
	}
	return nil
}

func (r *Registry) Resolve(ctx context.Context, key string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT endpoint
FROM agent_endpoints
WHERE key = $1
`, key)

	var endpoint string
	if err := row.Scan(&endpoint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrAgentNotFound, "resolve agent", fmt.Errorf("no endpoint registered for %s", key))
		}
		return "", fmt.Errorf("resolve agent endpoint: %w", err)
	}
	return endpoint, nil
}
