package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs functions inside a database transaction.
type Transactor struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

type TxOption func(*pgx.TxOptions)

// Serializable runs transactions at the serializable isolation level.
func Serializable() TxOption {
	return func(o *pgx.TxOptions) { o.IsoLevel = pgx.Serializable }
}

func NewTransactor(pool *pgxpool.Pool, opts ...TxOption) *Transactor {
	t := &Transactor{pool: pool}
	for _, opt := range opts {
		opt(&t.opts)
	}
	return t
}

// WithinTx commits when fn succeeds and rolls back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := t.pool.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
