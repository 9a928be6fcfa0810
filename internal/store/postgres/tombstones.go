package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TombstoneRepository handles the shared dead-link records.
type TombstoneRepository struct {
	db *sqlx.DB
}

// NewTombstoneRepository creates a new tombstone repository.
func NewTombstoneRepository(db *sqlx.DB) *TombstoneRepository {
	return &TombstoneRepository{db: db}
}

// Exists reports whether (domain, path) is tombstoned.
func (r *TombstoneRepository) Exists(ctx context.Context, domain, path string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM link_tombstones WHERE domain = $1 AND path = $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, domain, path); err != nil {
		return false, fmt.Errorf("failed to look up tombstone: %w", err)
	}
	return exists, nil
}

// Insert records a tombstone. Inserting an existing (domain, path) is a no-op
// and reports created = false.
func (r *TombstoneRepository) Insert(ctx context.Context, domain, path, reason string) (bool, error) {
	query := `
		INSERT INTO link_tombstones (domain, path, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain, path) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, domain, path, reason)
	if err != nil {
		return false, fmt.Errorf("failed to insert tombstone: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert tombstone: %w", err)
	}
	return n > 0, nil
}

// DeleteOlderThan removes tombstones created before cutoff and returns how
// many were removed.
func (r *TombstoneRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM link_tombstones WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tombstones: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tombstones: %w", err)
	}
	return n, nil
}

// Count returns the number of tombstones.
func (r *TombstoneRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM link_tombstones`); err != nil {
		return 0, fmt.Errorf("failed to count tombstones: %w", err)
	}
	return n, nil
}
