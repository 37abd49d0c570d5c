// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"appgate/pkg/db"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool      // Connection pool to PostgreSQL
	log    *zap.SugaredLogger // Logger for diagnostic output
	sealer Sealer
}

// NewPostgresStore constructs a PostgreSQL-backed tenant store. Access tokens are sealed with sealer.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger, sealer Sealer) Store {
	return &pgStore{dbPool: dbPool, log: log, sealer: sealer}
}

// EnsureSchema creates the tenant table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shop_sessions (
  shop text PRIMARY KEY,
  access_token bytea NOT NULL,
  scope text NOT NULL DEFAULT '',
  status text NOT NULL DEFAULT 'active',
  installed_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  uninstalled_at timestamptz
);
-- Backfill / ensure new columns exist (for upgrades)
ALTER TABLE shop_sessions ADD COLUMN IF NOT EXISTS status text NOT NULL DEFAULT 'active';
ALTER TABLE shop_sessions ADD COLUMN IF NOT EXISTS uninstalled_at timestamptz;
`)
	return err
}

// Upsert relies on ON CONFLICT for atomicity: concurrent re-installs of one shop serialise on the
// primary key and the last commit wins.
func (p *pgStore) Upsert(ctx context.Context, tenantID, accessToken string, scope []string) (Tenant, error) {
	blob, err := p.sealer.Seal(accessToken)
	if err != nil {
		return Tenant{}, fmt.Errorf("seal credential: %w", err)
	}
	scope = NormalizeScope(scope)
	t := Tenant{ID: tenantID, AccessToken: accessToken, Scope: scope, Status: StatusActive}
	err = db.InTenantTx(ctx, p.dbPool, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO shop_sessions(shop, access_token, scope, status)
			VALUES ($1,$2,$3,'active')
			ON CONFLICT (shop) DO UPDATE SET
			  access_token=EXCLUDED.access_token,
			  scope=EXCLUDED.scope,
			  status='active',
			  uninstalled_at=NULL,
			  updated_at=NOW()
			RETURNING installed_at, updated_at`,
			tenantID, blob, JoinScope(scope)).Scan(&t.InstalledAt, &t.UpdatedAt)
	})
	if err != nil {
		return Tenant{}, fmt.Errorf("upsert tenant %s: %w", tenantID, err)
	}
	return t, nil
}

// Get fetches a tenant by shop domain.
func (p *pgStore) Get(ctx context.Context, tenantID string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT shop, access_token, scope, status, installed_at, updated_at, uninstalled_at FROM shop_sessions WHERE shop=$1`, tenantID)
	var (
		t         Tenant
		blob      []byte
		scope     string
		status    string
		uninstall *time.Time
	)
	if err := row.Scan(&t.ID, &blob, &scope, &status, &t.InstalledAt, &t.UpdatedAt, &uninstall); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	tok, err := p.sealer.Open(blob)
	if err != nil {
		return Tenant{}, fmt.Errorf("open credential for %s: %w", tenantID, err)
	}
	t.AccessToken = tok
	t.Scope = ParseScope(scope)
	t.Status = Status(status)
	t.UninstalledAt = uninstall
	return t, nil
}

// MarkUninstalled only flips active rows, so a replayed uninstall event changes nothing.
func (p *pgStore) MarkUninstalled(ctx context.Context, tenantID string) (bool, error) {
	var changed bool
	err := db.InTenantTx(ctx, p.dbPool, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE shop_sessions SET status='uninstalled', uninstalled_at=NOW(), updated_at=NOW() WHERE shop=$1 AND status='active'`, tenantID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			changed = true
			return nil
		}
		var one int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM shop_sessions WHERE shop=$1`, tenantID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("uninstall tenant %s: %w", tenantID, err)
	}
	return changed, err
}

func (p *pgStore) UpdateScope(ctx context.Context, tenantID string, scope []string) error {
	return db.InTenantTx(ctx, p.dbPool, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE shop_sessions SET scope=$2, updated_at=NOW() WHERE shop=$1 AND status='active'`, tenantID, JoinScope(NormalizeScope(scope)))
		if err != nil {
			return fmt.Errorf("update scope %s: %w", tenantID, err)
		}
		if tag.RowsAffected() == 0 {
			var one int
			if err := tx.QueryRow(ctx, `SELECT 1 FROM shop_sessions WHERE shop=$1`, tenantID).Scan(&one); errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
		}
		return nil
	})
}
