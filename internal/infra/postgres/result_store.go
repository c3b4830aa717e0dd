package postgres

import (
	"context"
	"fmt"
	"time"

	"fge-test-platform/internal/domain"
	"github.com/uptrace/bun"
)

type resultRow struct {
	bun.BaseModel `bun:"table:test_results"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      string    `bun:"user_id,notnull"`
	Category    string    `bun:"category,notnull"`
	Mode        string    `bun:"mode,notnull"`
	Total       int       `bun:"total,notnull"`
	Answered    int       `bun:"answered,notnull"`
	Correct     int       `bun:"correct,notnull"`
	Percentage  int       `bun:"percentage,notnull"`
	Reason      string    `bun:"reason,nullzero"`
	CompletedAt time.Time `bun:"completed_at,notnull"`
}

// ResultStore persists submitted results with bun.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.TestResult) (domain.TestResult, error) {
	row := resultRow{
		UserID:      result.UserID,
		Category:    result.Category,
		Mode:        string(result.Mode),
		Total:       result.Total,
		Answered:    result.Answered,
		Correct:     result.Correct,
		Percentage:  result.Percentage,
		Reason:      string(result.Reason),
		CompletedAt: result.CompletedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return domain.TestResult{}, fmt.Errorf("insert result: %w", err)
	}
	result.ID = row.ID
	return result, nil
}

func (s *ResultStore) ListResults(ctx context.Context, userID string, limit int) ([]domain.TestResult, error) {
	var rows []resultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("completed_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := make([]domain.TestResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.TestResult{
			ID:          r.ID,
			UserID:      r.UserID,
			Category:    r.Category,
			Mode:        domain.Mode(r.Mode),
			Total:       r.Total,
			Answered:    r.Answered,
			Correct:     r.Correct,
			Percentage:  r.Percentage,
			Reason:      domain.Reason(r.Reason),
			CompletedAt: r.CompletedAt,
		})
	}
	return out, nil
}
