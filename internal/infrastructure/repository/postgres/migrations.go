package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"sensor-proxy/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ApplyMigrations executes the bundled SQL migrations in lexical order.
func ApplyMigrations(ctx context.Context, db *sql.DB, logger *logging.Logger) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}

		statements := strings.TrimSpace(string(contents))
		if statements == "" {
			logger.Debug("postgres: skipping empty migration", "migration", name)
			continue
		}

		if _, err := db.ExecContext(ctx, statements); err != nil {
			return fmt.Errorf("apply migration %q: %w", name, err)
		}
		logger.Info("postgres: migration applied", "migration", name)
	}

	return nil
}
