package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stockpilot/internal/schema"
)

// appendQueueItem writes a queue item inside an open transaction so the
// append commits or rolls back together with the entity write that
// produced it. The sequence id comes back from the insert.
func appendQueueItem(ctx context.Context, tx *sql.Tx, item *schema.QueueItem) error {
	if !item.Kind.Valid() {
		return fmt.Errorf("unknown queue item kind %q", item.Kind)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO sync_queue (kind, payload, timestamp, retries) VALUES (?, ?, ?, ?)",
		string(item.Kind), string(item.Payload), formatTime(item.Timestamp), item.Retries,
	)
	if err != nil {
		return fmt.Errorf("failed to append queue item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read queue sequence id: %w", err)
	}
	item.ID = id
	return nil
}

// AppendQueueItem appends a queue item outside any entity write.
// Normal writes enqueue through the Upsert*/Delete*/CreateSale
// transactions; this exists for requeueing and tests.
func (db *DB) AppendQueueItem(ctx context.Context, item *schema.QueueItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return appendQueueItem(ctx, tx, item)
	})
}

// PendingQueueItems returns all queued mutations in FIFO order.
func (db *DB) PendingQueueItems(ctx context.Context) ([]*schema.QueueItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, kind, payload, timestamp, retries FROM sync_queue ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var items []*schema.QueueItem
	for rows.Next() {
		var item schema.QueueItem
		var kind, payload, ts string
		if err := rows.Scan(&item.ID, &kind, &payload, &ts, &item.Retries); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Kind = schema.ItemKind(kind)
		item.Payload = json.RawMessage(payload)
		if item.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync queue: %w", err)
	}
	return items, nil
}

// PendingCount returns the number of queued mutations.
func (db *DB) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return count, nil
}

// RemoveQueueItem deletes a queue item after it was applied remotely.
// Idempotent: removing a missing item is not an error.
func (db *DB) RemoveQueueItem(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove queue item %d: %w", id, err)
	}
	return nil
}

// CompleteQueueItem finishes a successfully pushed item: it flags the
// referenced row synced (for upsert kinds) and removes the queue item in
// one transaction. Doing these as separate writes would leave a crash
// window where the row stays unsynced with no queue item left to
// redeliver it.
func (db *DB) CompleteQueueItem(ctx context.Context, item *schema.QueueItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		switch item.Kind {
		case schema.KindProductUpsert, schema.KindSaleUpsert:
			id, err := item.EntityID()
			if err != nil {
				return err
			}
			table := "products"
			if item.Kind == schema.KindSaleUpsert {
				table = "sales"
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE "+table+" SET synced = 1 WHERE id = ?", id); err != nil {
				return fmt.Errorf("failed to mark %s row %s synced: %w", table, id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", item.ID); err != nil {
			return fmt.Errorf("failed to remove queue item %d: %w", item.ID, err)
		}
		return nil
	})
}

// IncrementRetries bumps an item's retry count and returns the new value.
func (db *DB) IncrementRetries(ctx context.Context, id int64) (int, error) {
	var retries int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE sync_queue SET retries = retries + 1 WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to increment retries for queue item %d: %w", id, err)
		}
		row := tx.QueryRowContext(ctx, "SELECT retries FROM sync_queue WHERE id = ?", id)
		if err := row.Scan(&retries); err != nil {
			return fmt.Errorf("failed to read retries for queue item %d: %w", id, err)
		}
		return nil
	})
	return retries, err
}

// MoveToDeadLetter removes a queue item and records it in the dead-letter
// table with the reason it was abandoned, in one transaction. Nothing is
// ever silently dropped.
func (db *DB) MoveToDeadLetter(ctx context.Context, item *schema.QueueItem, reason string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", item.ID); err != nil {
			return fmt.Errorf("failed to remove queue item %d: %w", item.ID, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO dead_letter (queue_id, kind, payload, retries, reason, failed_at) VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, string(item.Kind), string(item.Payload), item.Retries, reason, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("failed to dead-letter queue item %d: %w", item.ID, err)
		}
		return nil
	})
}

// DeadLetterItems returns abandoned items, oldest first.
func (db *DB) DeadLetterItems(ctx context.Context) ([]*schema.DeadLetter, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, queue_id, kind, payload, retries, reason, failed_at FROM dead_letter ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letter: %w", err)
	}
	defer rows.Close()

	var items []*schema.DeadLetter
	for rows.Next() {
		var d schema.DeadLetter
		var kind, payload, failedAt string
		if err := rows.Scan(&d.ID, &d.QueueID, &kind, &payload, &d.Retries, &d.Reason, &failedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter item: %w", err)
		}
		d.Kind = schema.ItemKind(kind)
		d.Payload = json.RawMessage(payload)
		if d.FailedAt, err = parseTime(failedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter item: %w", err)
		}
		items = append(items, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letter: %w", err)
	}
	return items, nil
}

// DeadLetterCount returns the number of abandoned items.
func (db *DB) DeadLetterCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letter").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dead letter: %w", err)
	}
	return count, nil
}
