package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BeginTxWithTenant starts a transaction and sets app.shop so row-level policies and
// audit triggers can see which tenant the write belongs to.
// Call tx.Rollback(ctx) on error paths; Commit on success.
func BeginTxWithTenant(ctx context.Context, pool *pgxpool.Pool, shop string) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.shop', $1, true)", shop); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

// InTenantTx runs fn inside a tenant-scoped transaction. Nothing fn wrote is visible unless it returns nil.
func InTenantTx(ctx context.Context, pool *pgxpool.Pool, shop string, fn func(pgx.Tx) error) error {
	tx, err := BeginTxWithTenant(ctx, pool, shop)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
