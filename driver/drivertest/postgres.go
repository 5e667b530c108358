// Package drivertest connects repository tests to a real Postgres when one is
// configured.
package drivertest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"goflare.io/quoting/driver"
)

// PostgresURLEnv names the DSN of the database repository tests run against.
const PostgresURLEnv = "QUOTING_TEST_POSTGRES_URL"

// Postgres returns a pool bound to a fresh, migrated schema that is dropped
// when the test ends. The test is skipped when PostgresURLEnv is unset.
func Postgres(t testing.TB) driver.PostgresPool {
	t.Helper()

	dsn := os.Getenv(PostgresURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", PostgresURLEnv)
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	schema := "quoting_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		if _, err := admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema)); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	require.NoError(t, driver.Migrate(ctx, pool))
	return pool
}
