package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spareflow/spareflow/internal/model"
)

// GetPreference retrieves a user's round-up preference. A missing preference
// returns nil without an error; callers apply the default amount.
func (s *SQLiteStorage) GetPreference(ctx context.Context, userID string) (*model.UserRoundUpPreference, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var pref model.UserRoundUpPreference
	var fixedAmount string
	var enabled int

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, fixed_amount, enabled, updated_at
		FROM roundup_preferences
		WHERE user_id = ?
	`, userID).Scan(&pref.UserID, &fixedAmount, &enabled, &pref.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	amount, parseErr := decimal.NewFromString(fixedAmount)
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", fixedAmount, parseErr)
	}
	pref.FixedAmount = amount
	pref.Enabled = enabled != 0

	return &pref, nil
}

// SavePreference saves or updates a user's round-up preference.
func (s *SQLiteStorage) SavePreference(ctx context.Context, pref *model.UserRoundUpPreference) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePreference(pref); err != nil {
		return err
	}

	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now()
	}

	enabled := 0
	if pref.Enabled {
		enabled = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roundup_preferences (user_id, fixed_amount, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			fixed_amount = excluded.fixed_amount,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, pref.UserID, pref.FixedAmount.String(), enabled, pref.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}
