package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS auth_sessions (
		storage_key TEXT PRIMARY KEY,
		payload     JSONB       NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS auth_sessions_updated_at_idx ON auth_sessions (updated_at)`,
}

// migrateLockID keys the advisory lock held while the schema is applied, so
// replicas starting together do not race on CREATE.
const migrateLockID = 7_311_042

// Migrate creates the tables the bot needs if they do not exist yet.
func Migrate(ctx context.Context, t *Transactor) error {
	return t.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockID); err != nil {
			return fmt.Errorf("migrate lock: %w", err)
		}
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
