package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
)

type suggestionRepository struct {
	db *DB
}

// NewSuggestionRepository persists minimum-stock suggestions
func NewSuggestionRepository(db *DB) repository.SuggestionWriter {
	return &suggestionRepository{db: db}
}

func (r *suggestionRepository) SaveMinimumStockSuggestions(ctx context.Context, suggestions []domain.MinimumStockSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO minimum_stock_suggestions (
				product_id, branch_id, daily_average, confidence,
				has_peak, suggested_minimum, basis, computed_at
			) VALUES (
				:product_id, :branch_id, :daily_average, :confidence,
				:has_peak, :suggested_minimum, :basis, :computed_at
			)
			ON CONFLICT (product_id, branch_id)
			DO UPDATE SET
				daily_average = EXCLUDED.daily_average,
				confidence = EXCLUDED.confidence,
				has_peak = EXCLUDED.has_peak,
				suggested_minimum = EXCLUDED.suggested_minimum,
				basis = EXCLUDED.basis,
				computed_at = EXCLUDED.computed_at
		`

		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range suggestions {
			if _, err := stmt.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("failed to save suggestion for %s@%s: %w", s.ProductID, s.BranchID, err)
			}
		}

		return nil
	})
}
