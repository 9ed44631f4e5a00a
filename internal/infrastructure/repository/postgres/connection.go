package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// registers the "postgres" driver
	_ "github.com/lib/pq"

	"sensor-proxy/internal/logging"
)

// Open opens a database handle for the DSN and validates it with a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("db: DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return db, nil
}

// WaitForDatabase retries Open until the database answers, the attempts run out
// or the context ends.
func WaitForDatabase(ctx context.Context, dsn string, attempts int, delay time.Duration, logger *logging.Logger) (*sql.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := Open(ctx, dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("db: connection attempt failed", logging.AttachError(err, "attempt", attempt)...)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("db: not reachable after %d attempts: %w", attempts, lastErr)
}
