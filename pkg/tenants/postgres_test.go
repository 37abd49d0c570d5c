package tenants

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mustTestPool connects to TEST_DATABASE_URL and applies the schema.
func mustTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url, ok := os.LookupEnv("TEST_DATABASE_URL")
	if !ok || url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func TestPostgresStoreLifecycle(t *testing.T) {
	pool := mustTestPool(t)
	ctx := context.Background()
	store := NewPostgresStore(pool, zap.NewNop().Sugar(), NewSealer("test-key"))
	shop := "shop-" + uuid.NewString()[:8] + ".example"
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM shop_sessions WHERE shop=$1`, shop) })

	_, err := store.Get(ctx, shop)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Upsert(ctx, shop, "tok-1", []string{"read_products"})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, shop, "tok-2", []string{"read_products", "write_products"})
	require.NoError(t, err)

	got, err := store.Get(ctx, shop)
	require.NoError(t, err)
	require.Equal(t, "tok-2", got.AccessToken)
	require.Equal(t, []string{"read_products", "write_products"}, got.Scope)
	require.True(t, got.Active())

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM shop_sessions WHERE shop=$1`, shop).Scan(&rows))
	require.Equal(t, 1, rows)

	var raw []byte
	require.NoError(t, pool.QueryRow(ctx, `SELECT access_token FROM shop_sessions WHERE shop=$1`, shop).Scan(&raw))
	require.NotContains(t, string(raw), "tok-2")

	changed, err := store.MarkUninstalled(ctx, shop)
	require.NoError(t, err)
	require.True(t, changed)
	changed, err = store.MarkUninstalled(ctx, shop)
	require.NoError(t, err)
	require.False(t, changed)

	got, err = store.Get(ctx, shop)
	require.NoError(t, err)
	require.Equal(t, StatusUninstalled, got.Status)

	_, err = store.MarkUninstalled(ctx, "missing-"+shop)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresConcurrentUpserts(t *testing.T) {
	pool := mustTestPool(t)
	ctx := context.Background()
	store := NewPostgresStore(pool, zap.NewNop().Sugar(), NewSealer(""))
	shop := "race-" + uuid.NewString()[:8] + ".example"
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM shop_sessions WHERE shop=$1`, shop) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Upsert(ctx, shop, "tok", []string{"read_products"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM shop_sessions WHERE shop=$1`, shop).Scan(&rows))
	require.Equal(t, 1, rows)
}
