package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dtroode/sqrl-server/internal/logger"
)

const (
	reapNutsQuery        = `DELETE FROM sqrl_nuts WHERE expires_at < $1`
	reapCorrelatorsQuery = `DELETE FROM sqrl_correlators WHERE expires_at < $1`
)

// Reaper periodically deletes expired nuts and correlators.
type Reaper struct {
	db       *sql.DB
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewReaper creates a Reaper running every interval.
func NewReaper(db *sql.DB, interval time.Duration, logger *logger.Logger) *Reaper {
	return &Reaper{db: db, interval: interval, logger: logger, now: time.Now}
}

// ReapOnce deletes rows that expired before now and returns how many of each went.
func (r *Reaper) ReapOnce(ctx context.Context) (nuts, correlators int64, err error) {
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin reap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, reapNutsQuery, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reap nuts: %w", err)
	}
	if nuts, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("failed to count reaped nuts: %w", err)
	}

	res, err = tx.ExecContext(ctx, reapCorrelatorsQuery, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reap correlators: %w", err)
	}
	if correlators, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("failed to count reaped correlators: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit reap: %w", err)
	}
	return nuts, correlators, nil
}

// Run reaps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nuts, correlators, err := r.ReapOnce(ctx)
			if err != nil {
				r.logger.Error("Reaper: failed to delete expired rows",
					"error", err.Error())
				continue
			}
			if nuts > 0 || correlators > 0 {
				r.logger.Debug("Reaper: deleted expired rows",
					"nuts", nuts,
					"correlators", correlators)
			}
		}
	}
}
