package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spareflow/spareflow/internal/model"
)

func testRoundUp(id, userID string, amount, delta string) *model.RoundUpLedgerEntry {
	original := decimal.RequireFromString(amount)
	d := decimal.RequireFromString(delta)
	return &model.RoundUpLedgerEntry{
		ID:             id,
		UserID:         userID,
		TransactionID:  "txn-" + id,
		OriginalAmount: original,
		Delta:          d,
		Fee:            decimal.Zero,
		TotalDebit:     original.Add(d),
		Status:         model.RoundUpPending,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStorage_SaveAndGetRoundUps(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := testRoundUp("ru-1", "user-1", "42.17", "1.00")
	if err := store.SaveRoundUpEntry(ctx, entry); err != nil {
		t.Fatalf("Failed to save round-up entry: %v", err)
	}

	entries, err := store.GetRoundUpsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to get round-ups: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	got := entries[0]
	if !got.OriginalAmount.Equal(decimal.RequireFromString("42.17")) {
		t.Errorf("OriginalAmount = %s, want 42.17", got.OriginalAmount)
	}
	if !got.Delta.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("Delta = %s, want 1.00", got.Delta)
	}
	if !got.Fee.IsZero() {
		t.Errorf("Fee = %s, want 0", got.Fee)
	}
	if !got.TotalDebit.Equal(decimal.RequireFromString("43.17")) {
		t.Errorf("TotalDebit = %s, want 43.17", got.TotalDebit)
	}
	if got.Status != model.RoundUpPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.SweptAt != nil || got.SweepBatchID != "" {
		t.Error("Pending entry must not carry sweep fields")
	}
}

func TestSQLiteStorage_GetPendingRoundUps_ExcludesSwept(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pending := testRoundUp("ru-p", "user-1", "10.00", "0.50")
	if err := store.SaveRoundUpEntry(ctx, pending); err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	swept := testRoundUp("ru-s", "user-1", "20.00", "0.50")
	swept.Status = model.RoundUpSwept
	swept.SweepBatchID = "sweep-001"
	sweptAt := time.Now().UTC().Truncate(time.Second)
	swept.SweptAt = &sweptAt
	if err := store.SaveRoundUpEntry(ctx, swept); err != nil {
		t.Fatalf("Failed to save swept entry: %v", err)
	}

	entries, err := store.GetPendingRoundUps(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to get pending round-ups: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "ru-p" {
		t.Errorf("Pending entries = %+v", entries)
	}
}

func TestSQLiteStorage_SweepPending(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := testRoundUp(fmt.Sprintf("ru-%d", i), "user-1", "15.00", "1.00")
		if err := store.SaveRoundUpEntry(ctx, entry); err != nil {
			t.Fatalf("Failed to save entry: %v", err)
		}
	}
	// Another user's pending entry must survive the sweep.
	other := testRoundUp("ru-other", "user-2", "5.00", "1.00")
	if err := store.SaveRoundUpEntry(ctx, other); err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	sweptAt := time.Now().UTC().Truncate(time.Second)
	swept, err := store.SweepPending(ctx, "user-1", "sweep-abc", sweptAt)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if len(swept) != 3 {
		t.Fatalf("Expected 3 swept entries, got %d", len(swept))
	}
	for _, entry := range swept {
		if entry.Status != model.RoundUpSwept {
			t.Errorf("Entry %s status = %q, want swept", entry.ID, entry.Status)
		}
		if entry.SweepBatchID != "sweep-abc" {
			t.Errorf("Entry %s batch = %q, want sweep-abc", entry.ID, entry.SweepBatchID)
		}
		if entry.SweptAt == nil {
			t.Errorf("Entry %s missing swept timestamp", entry.ID)
		}
	}

	remaining, err := store.GetPendingRoundUps(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to get pending: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected no pending entries after sweep, got %d", len(remaining))
	}

	otherPending, err := store.GetPendingRoundUps(ctx, "user-2")
	if err != nil {
		t.Fatalf("Failed to get pending: %v", err)
	}
	if len(otherPending) != 1 {
		t.Errorf("Other user's pending entry was disturbed: %+v", otherPending)
	}
}

func TestSQLiteStorage_SweepPending_Empty(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	swept, err := store.SweepPending(context.Background(), "user-1", "sweep-empty", time.Now())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(swept) != 0 {
		t.Errorf("Expected empty sweep, got %d entries", len(swept))
	}
}

func TestSQLiteStorage_SweepPending_SecondSweepFindsNothing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := testRoundUp("ru-once", "user-1", "12.00", "1.00")
	if err := store.SaveRoundUpEntry(ctx, entry); err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	first, err := store.SweepPending(ctx, "user-1", "sweep-1", time.Now())
	if err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("First sweep got %d entries, want 1", len(first))
	}

	second, err := store.SweepPending(ctx, "user-1", "sweep-2", time.Now())
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("Second sweep re-swept %d entries", len(second))
	}

	// The original batch id is untouched by the later attempt.
	all, err := store.GetRoundUpsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to get round-ups: %v", err)
	}
	if all[0].SweepBatchID != "sweep-1" {
		t.Errorf("Batch = %q, want sweep-1", all[0].SweepBatchID)
	}
}

func TestSQLiteStorage_SaveRoundUpEntry_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveRoundUpEntry(ctx, nil); err == nil {
		t.Error("Expected error for nil entry")
	}

	bad := testRoundUp("ru-bad", "user-1", "10.00", "1.00")
	bad.Delta = decimal.RequireFromString("-1.00")
	if err := store.SaveRoundUpEntry(ctx, bad); err == nil {
		t.Error("Expected error for negative delta")
	}
}
