// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnsureSchema applies every pending migration. Idempotent: re-running
// against an already-current database is a no-op.
func (f *SessionFactory) EnsureSchema(ctx context.Context) error {
	// The provider reads migrations from the root of the FS it is given.
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, f.db, migrations)
	if err != nil {
		return fmt.Errorf("store: building migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: applying schema migrations: %w", err)
	}
	return nil
}
