package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spareflow/spareflow/internal/model"
)

// SaveRoundUpEntry persists a round-up ledger entry. Amounts are stored as
// exact decimal strings, never as floats.
func (s *SQLiteStorage) SaveRoundUpEntry(ctx context.Context, entry *model.RoundUpLedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRoundUpEntry(entry); err != nil {
		return err
	}

	var sweptAt sql.NullTime
	if entry.SweptAt != nil {
		sweptAt = sql.NullTime{Time: *entry.SweptAt, Valid: true}
	}
	var batchID sql.NullString
	if entry.SweepBatchID != "" {
		batchID = sql.NullString{String: entry.SweepBatchID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roundup_entries (
			id, user_id, transaction_id,
			original_amount, delta, fee, total_debit,
			status, sweep_batch_id, swept_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			sweep_batch_id = excluded.sweep_batch_id,
			swept_at = excluded.swept_at
	`, entry.ID, entry.UserID, entry.TransactionID,
		entry.OriginalAmount.String(), entry.Delta.String(), entry.Fee.String(), entry.TotalDebit.String(),
		string(entry.Status), batchID, sweptAt, entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save round-up entry: %w", err)
	}
	return nil
}

// GetPendingRoundUps retrieves a user's pending round-up entries, oldest
// first.
func (s *SQLiteStorage) GetPendingRoundUps(ctx context.Context, userID string) ([]model.RoundUpLedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	return s.queryRoundUps(ctx, s.db, `
		SELECT id, user_id, transaction_id,
			original_amount, delta, fee, total_debit,
			status, sweep_batch_id, swept_at, created_at
		FROM roundup_entries
		WHERE user_id = ? AND status = ?
		ORDER BY created_at
	`, userID, string(model.RoundUpPending))
}

// GetRoundUpsByUser retrieves all of a user's round-up entries, oldest first.
func (s *SQLiteStorage) GetRoundUpsByUser(ctx context.Context, userID string) ([]model.RoundUpLedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	return s.queryRoundUps(ctx, s.db, `
		SELECT id, user_id, transaction_id,
			original_amount, delta, fee, total_debit,
			status, sweep_batch_id, swept_at, created_at
		FROM roundup_entries
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
}

// GetAllRoundUps retrieves every round-up entry across all users.
func (s *SQLiteStorage) GetAllRoundUps(ctx context.Context) ([]model.RoundUpLedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryRoundUps(ctx, s.db, `
		SELECT id, user_id, transaction_id,
			original_amount, delta, fee, total_debit,
			status, sweep_batch_id, swept_at, created_at
		FROM roundup_entries
		ORDER BY user_id, created_at
	`)
}

// SweepPending atomically marks every pending entry for the user as swept
// under a single batch id. The select and update run in one transaction, so a
// concurrent reader sees either the full pending set or the full swept set.
func (s *SQLiteStorage) SweepPending(ctx context.Context, userID, batchID string, sweptAt time.Time) ([]model.RoundUpLedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entries, err := s.queryRoundUps(ctx, tx, `
		SELECT id, user_id, transaction_id,
			original_amount, delta, fee, total_debit,
			status, sweep_batch_id, swept_at, created_at
		FROM roundup_entries
		WHERE user_id = ? AND status = ?
		ORDER BY created_at
	`, userID, string(model.RoundUpPending))
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, tx.Commit()
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE roundup_entries
		SET status = ?, sweep_batch_id = ?, swept_at = ?
		WHERE user_id = ? AND status = ?
	`, string(model.RoundUpSwept), batchID, sweptAt, userID, string(model.RoundUpPending))
	if err != nil {
		return nil, fmt.Errorf("failed to sweep round-up entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != int64(len(entries)) {
		return nil, fmt.Errorf("sweep updated %d of %d pending entries", rowsAffected, len(entries))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sweep: %w", err)
	}

	ts := sweptAt
	for i := range entries {
		entries[i].Status = model.RoundUpSwept
		entries[i].SweepBatchID = batchID
		entries[i].SweptAt = &ts
	}

	return entries, nil
}

// queryable abstracts *sql.DB and *sql.Tx for shared query helpers.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStorage) queryRoundUps(ctx context.Context, q queryable, query string, args ...any) ([]model.RoundUpLedgerEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query round-up entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.RoundUpLedgerEntry
	for rows.Next() {
		entry, scanErr := scanRoundUp(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

func scanRoundUp(rows *sql.Rows) (*model.RoundUpLedgerEntry, error) {
	var (
		entry                                  model.RoundUpLedgerEntry
		originalAmount, delta, fee, totalDebit string
		status                                 string
		batchID                                sql.NullString
		sweptAt                                sql.NullTime
	)

	err := rows.Scan(
		&entry.ID, &entry.UserID, &entry.TransactionID,
		&originalAmount, &delta, &fee, &totalDebit,
		&status, &batchID, &sweptAt, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan round-up entry: %w", err)
	}

	entry.Status = model.RoundUpStatus(status)
	entry.SweepBatchID = batchID.String
	if sweptAt.Valid {
		ts := sweptAt.Time
		entry.SweptAt = &ts
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&entry.OriginalAmount, originalAmount},
		{&entry.Delta, delta},
		{&entry.Fee, fee},
		{&entry.TotalDebit, totalDebit},
	} {
		value, parseErr := decimal.NewFromString(field.raw)
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse stored amount %q: %w", field.raw, parseErr)
		}
		*field.dst = value
	}

	return &entry, nil
}
