package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spareflow/spareflow/internal/model"
)

// SaveQueueEntry inserts or updates a mapping queue entry.
func (s *SQLiteStorage) SaveQueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateQueueEntry(entry); err != nil {
		return err
	}

	var (
		proposalTicker, proposalCategory, proposalMethod, proposalReasoning sql.NullString
		proposalConfidence                                                  sql.NullFloat64
		decidedBy, decisionNotes                                            sql.NullString
		decidedAt                                                           sql.NullTime
	)

	if entry.Proposal != nil {
		proposalTicker = sql.NullString{String: entry.Proposal.Ticker, Valid: true}
		proposalCategory = sql.NullString{String: entry.Proposal.Category, Valid: true}
		proposalMethod = sql.NullString{String: string(entry.Proposal.Method), Valid: true}
		proposalReasoning = sql.NullString{String: entry.Proposal.Reasoning, Valid: true}
		proposalConfidence = sql.NullFloat64{Float64: entry.Proposal.Confidence, Valid: true}
	}
	if entry.Decision != nil {
		decidedBy = sql.NullString{String: entry.Decision.DecidedBy, Valid: true}
		decisionNotes = sql.NullString{String: entry.Decision.Notes, Valid: true}
		decidedAt = sql.NullTime{Time: entry.Decision.DecidedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mapping_queue (
			id, tenant_id, merchant_raw, ticker_hint, status,
			proposal_ticker, proposal_category, proposal_confidence, proposal_method, proposal_reasoning,
			decided_by, decided_at, decision_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			proposal_ticker = excluded.proposal_ticker,
			proposal_category = excluded.proposal_category,
			proposal_confidence = excluded.proposal_confidence,
			proposal_method = excluded.proposal_method,
			proposal_reasoning = excluded.proposal_reasoning,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at,
			decision_notes = excluded.decision_notes,
			updated_at = excluded.updated_at
	`, entry.ID, entry.TenantID, entry.MerchantRaw, entry.TickerHint, string(entry.Status),
		proposalTicker, proposalCategory, proposalConfidence, proposalMethod, proposalReasoning,
		decidedBy, decidedAt, decisionNotes, entry.CreatedAt, entry.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save queue entry: %w", err)
	}
	return nil
}

// GetQueueEntry retrieves a queue entry by id. A missing entry returns nil
// without an error so callers can produce their own structured error.
func (s *SQLiteStorage) GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, merchant_raw, ticker_hint, status,
			proposal_ticker, proposal_category, proposal_confidence, proposal_method, proposal_reasoning,
			decided_by, decided_at, decision_notes, created_at, updated_at
		FROM mapping_queue
		WHERE id = ?
	`, id)

	entry, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return entry, nil
}

// GetQueueEntriesByStatus retrieves entries with the given status, oldest
// first.
func (s *SQLiteStorage) GetQueueEntriesByStatus(ctx context.Context, status model.QueueStatus) ([]model.QueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, merchant_raw, ticker_hint, status,
			proposal_ticker, proposal_category, proposal_confidence, proposal_method, proposal_reasoning,
			decided_by, decided_at, decision_notes, created_at, updated_at
		FROM mapping_queue
		WHERE status = ?
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query queue entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.QueueEntry
	for rows.Next() {
		entry, scanErr := scanQueueEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", scanErr)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// CountQueueEntriesByStatus returns the number of entries per status.
func (s *SQLiteStorage) CountQueueEntriesByStatus(ctx context.Context) (map[model.QueueStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM mapping_queue
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.QueueStatus]int)
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan count: %w", scanErr)
		}
		counts[model.QueueStatus(status)] = count
	}

	return counts, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(row rowScanner) (*model.QueueEntry, error) {
	var (
		entry                                                               model.QueueEntry
		status                                                              string
		tickerHint                                                          sql.NullString
		proposalTicker, proposalCategory, proposalMethod, proposalReasoning sql.NullString
		proposalConfidence                                                  sql.NullFloat64
		decidedBy, decisionNotes                                            sql.NullString
		decidedAt                                                           sql.NullTime
	)

	err := row.Scan(
		&entry.ID, &entry.TenantID, &entry.MerchantRaw, &tickerHint, &status,
		&proposalTicker, &proposalCategory, &proposalConfidence, &proposalMethod, &proposalReasoning,
		&decidedBy, &decidedAt, &decisionNotes, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.TickerHint = tickerHint.String
	entry.Status = model.QueueStatus(status)

	if proposalMethod.Valid {
		entry.Proposal = &model.MerchantMapping{
			Ticker:      proposalTicker.String,
			Category:    proposalCategory.String,
			Confidence:  proposalConfidence.Float64,
			Method:      model.ResolutionMethod(proposalMethod.String),
			Reasoning:   proposalReasoning.String,
			NeedsReview: model.StatusForConfidence(proposalConfidence.Float64) != model.ResolutionApproved,
		}
	}
	if decidedBy.Valid {
		entry.Decision = &model.AdminDecision{
			DecidedBy: decidedBy.String,
			DecidedAt: decidedAt.Time,
			Notes:     decisionNotes.String,
		}
	}

	return &entry, nil
}
