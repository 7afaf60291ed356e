package store

import (
	"context"
	"testing"

	"stockpilot/internal/schema"
)

func appendTestItem(t *testing.T, db *DB, id string) *schema.QueueItem {
	t.Helper()
	item, err := schema.NewProductUpsertItem(testProduct(id, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AppendQueueItem(context.Background(), item); err != nil {
		t.Fatalf("AppendQueueItem() error = %v", err)
	}
	return item
}

func TestQueue_FIFOOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := appendTestItem(t, db, "p1")
	second := appendTestItem(t, db, "p2")
	third := appendTestItem(t, db, "p3")

	if first.ID == 0 || second.ID <= first.ID || third.ID <= second.ID {
		t.Errorf("sequence not monotonic: %d, %d, %d", first.ID, second.ID, third.ID)
	}

	items, err := db.PendingQueueItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("PendingQueueItems() = %d items, want 3", len(items))
	}
	for i, want := range []int64{first.ID, second.ID, third.ID} {
		if items[i].ID != want {
			t.Errorf("items[%d].ID = %d, want %d", i, items[i].ID, want)
		}
	}
}

func TestRemoveQueueItem(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	item := appendTestItem(t, db, "p1")

	if err := db.RemoveQueueItem(ctx, item.ID); err != nil {
		t.Fatalf("RemoveQueueItem() error = %v", err)
	}
	pending, _ := db.PendingCount(ctx)
	if pending != 0 {
		t.Errorf("PendingCount() = %d, want 0", pending)
	}

	// Removing an already-removed item is fine; delivery is
	// at-least-once and the remote is idempotent.
	if err := db.RemoveQueueItem(ctx, item.ID); err != nil {
		t.Errorf("second RemoveQueueItem() error = %v", err)
	}
}

func TestIncrementRetries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	item := appendTestItem(t, db, "p1")

	for want := 1; want <= 3; want++ {
		got, err := db.IncrementRetries(ctx, item.ID)
		if err != nil {
			t.Fatalf("IncrementRetries() error = %v", err)
		}
		if got != want {
			t.Errorf("IncrementRetries() = %d, want %d", got, want)
		}
	}

	items, _ := db.PendingQueueItems(ctx)
	if len(items) != 1 || items[0].Retries != 3 {
		t.Errorf("persisted retries = %+v, want 3", items)
	}
}

func TestMoveToDeadLetter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	item := appendTestItem(t, db, "p1")
	if _, err := db.IncrementRetries(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	item.Retries = 1

	if err := db.MoveToDeadLetter(ctx, item, "remote rejected (status 422)"); err != nil {
		t.Fatalf("MoveToDeadLetter() error = %v", err)
	}

	// Gone from the queue...
	pending, _ := db.PendingCount(ctx)
	if pending != 0 {
		t.Errorf("PendingCount() = %d after dead-letter, want 0", pending)
	}

	// ...and preserved, not dropped.
	letters, err := db.DeadLetterItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(letters) != 1 {
		t.Fatalf("DeadLetterItems() = %d, want 1", len(letters))
	}
	dl := letters[0]
	if dl.QueueID != item.ID {
		t.Errorf("QueueID = %d, want %d", dl.QueueID, item.ID)
	}
	if dl.Kind != schema.KindProductUpsert {
		t.Errorf("Kind = %q", dl.Kind)
	}
	if dl.Reason != "remote rejected (status 422)" {
		t.Errorf("Reason = %q", dl.Reason)
	}
	if dl.Retries != 1 {
		t.Errorf("Retries = %d, want 1", dl.Retries)
	}
	if dl.FailedAt.IsZero() {
		t.Error("FailedAt not set")
	}

	count, err := db.DeadLetterCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("DeadLetterCount() = %d, want 1", count)
	}
}

func TestCompleteQueueItem_Product(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), true); err != nil {
		t.Fatal(err)
	}
	items, err := db.PendingQueueItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("PendingQueueItems() = %d items, want 1", len(items))
	}

	if err := db.CompleteQueueItem(ctx, items[0]); err != nil {
		t.Fatalf("CompleteQueueItem() error = %v", err)
	}

	got, err := db.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Synced {
		t.Error("product still unsynced after completion")
	}
	if pending, _ := db.PendingCount(ctx); pending != 0 {
		t.Errorf("PendingCount() = %d, want 0", pending)
	}
}

func TestCompleteQueueItem_Sale(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), false); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSale(ctx, testSale("s1", "p1", 2)); err != nil {
		t.Fatal(err)
	}

	items, err := db.PendingQueueItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range items {
		if err := db.CompleteQueueItem(ctx, item); err != nil {
			t.Fatalf("CompleteQueueItem(%d) error = %v", item.ID, err)
		}
	}

	got, err := db.GetSale(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Synced {
		t.Error("sale still unsynced after completion")
	}
	if pending, _ := db.PendingCount(ctx); pending != 0 {
		t.Errorf("PendingCount() = %d, want 0", pending)
	}
}

func TestCompleteQueueItem_Delete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), false); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteProduct(ctx, "p1", true); err != nil {
		t.Fatal(err)
	}

	items, err := db.PendingQueueItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Kind != schema.KindProductDelete {
		t.Fatalf("pending = %+v, want one product-delete", items)
	}

	// No row left to flag; completion just drains the queue.
	if err := db.CompleteQueueItem(ctx, items[0]); err != nil {
		t.Fatalf("CompleteQueueItem() error = %v", err)
	}
	if pending, _ := db.PendingCount(ctx); pending != 0 {
		t.Errorf("PendingCount() = %d, want 0", pending)
	}
}

func TestCompleteQueueItem_BadPayloadChangesNothing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), true); err != nil {
		t.Fatal(err)
	}
	items, err := db.PendingQueueItems(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// All-or-nothing: if the payload can't name the row, the item must
	// stay queued and the row unsynced so a later cycle can retry.
	bad := *items[0]
	bad.Payload = []byte("{")
	if err := db.CompleteQueueItem(ctx, &bad); err == nil {
		t.Fatal("CompleteQueueItem() with bad payload succeeded, want error")
	}

	if pending, _ := db.PendingCount(ctx); pending != 1 {
		t.Errorf("PendingCount() = %d, want 1", pending)
	}
	got, err := db.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Synced {
		t.Error("product flagged synced despite failed completion")
	}
}
