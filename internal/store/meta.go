package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lastSyncKey = "last_sync_time"

// LastSyncTime returns when the last successful sync cycle completed,
// or nil if no cycle has ever completed.
func (db *DB) LastSyncTime(ctx context.Context) (*time.Time, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", lastSyncKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}
	t, err := parseTime(value)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}
	return &t, nil
}

// SetLastSyncTime records the completion time of a sync cycle.
func (db *DB) SetLastSyncTime(ctx context.Context, t time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastSyncKey, formatTime(t))
	if err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}
