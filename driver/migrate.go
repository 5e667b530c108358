package driver

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations.sql
var migrations string

// Migrate applies the idempotent schema in migrations.sql.
func Migrate(ctx context.Context, conn PostgresPool) error {
	if _, err := conn.Exec(ctx, migrations); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
