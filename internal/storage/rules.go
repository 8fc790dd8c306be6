package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spareflow/spareflow/internal/common"
	"github.com/spareflow/spareflow/internal/model"
)

// GetRule retrieves a resolver rule by its normalized pattern. A missing rule
// returns nil without an error.
func (s *SQLiteStorage) GetRule(ctx context.Context, pattern string) (*model.ResolverRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	// Check cache first
	if rule := s.getCachedRule(pattern); rule != nil {
		return rule, nil
	}

	var rule model.ResolverRule
	var source string

	err := s.db.QueryRowContext(ctx, `
		SELECT pattern, ticker, category, confidence, source, use_count, created_at
		FROM resolver_rules
		WHERE pattern = ?
	`, pattern).Scan(
		&rule.Pattern,
		&rule.Ticker,
		&rule.Category,
		&rule.Confidence,
		&source,
		&rule.UseCount,
		&rule.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	rule.Source = model.RuleSource(source)
	s.cacheRule(&rule)

	return &rule, nil
}

// SaveRule saves or updates a resolver rule. Re-confirming a pattern replaces
// the stored ticker and confidence rather than creating a duplicate.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.ResolverRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolver_rules (pattern, ticker, category, confidence, source, use_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			ticker = excluded.ticker,
			category = excluded.category,
			confidence = excluded.confidence,
			source = excluded.source
	`, rule.Pattern, rule.Ticker, rule.Category, rule.Confidence, string(rule.Source), rule.UseCount, rule.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	s.cacheRule(rule)

	return nil
}

// GetAllRules retrieves every resolver rule, ordered by pattern.
func (s *SQLiteStorage) GetAllRules(ctx context.Context) ([]model.ResolverRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, ticker, category, confidence, source, use_count, created_at
		FROM resolver_rules
		ORDER BY pattern
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.ResolverRule
	for rows.Next() {
		var rule model.ResolverRule
		var source string
		if scanErr := rows.Scan(
			&rule.Pattern,
			&rule.Ticker,
			&rule.Category,
			&rule.Confidence,
			&source,
			&rule.UseCount,
			&rule.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", scanErr)
		}
		rule.Source = model.RuleSource(source)
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// IncrementRuleUseCount bumps the use counter on a rule after it has served a
// resolution.
func (s *SQLiteStorage) IncrementRuleUseCount(ctx context.Context, pattern string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE resolver_rules SET use_count = use_count + 1 WHERE pattern = ?
	`, pattern)
	if err != nil {
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	// Keep the cached copy consistent with the database.
	s.cacheMutex.Lock()
	if cached, ok := s.ruleCache[pattern]; ok {
		cached.UseCount++
	}
	s.cacheMutex.Unlock()

	return nil
}

// getCachedRule retrieves a rule from the cache.
func (s *SQLiteStorage) getCachedRule(pattern string) *model.ResolverRule {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		// Cache expired, needs to be cleared
		// Upgrade to write lock
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.ruleCache = make(map[string]*model.ResolverRule)
		}
		return nil
	}

	rule := s.ruleCache[pattern]
	s.cacheMutex.RUnlock()
	return rule
}

// cacheRule adds a rule to the cache.
func (s *SQLiteStorage) cacheRule(rule *model.ResolverRule) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.ruleCache) == 0 {
		// Set cache expiry on first entry
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	s.ruleCache[rule.Pattern] = rule
}
