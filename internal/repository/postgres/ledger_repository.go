// backend-go/internal/repository/postgres/ledger_repository.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	"github.com/lib/pq"
)

var _ repository.BulkStockReader = (*ledgerRepository)(nil)

type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository reads sales, stock, groups and the catalog from Postgres
func NewLedgerRepository(db *DB) repository.Ledger {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) GetSales(ctx context.Context, productID, branchID string, windowDays int, asOf time.Time) ([]domain.SalesObservation, error) {
	query := `
		SELECT branch_id, sale_date, quantity
		FROM daily_sales
		WHERE product_id = $1
		  AND branch_id = $2
		  AND sale_date BETWEEN $3::date - ($4::int - 1) AND $3::date
		ORDER BY sale_date
	`

	var rows []domain.SalesObservation
	if err := r.db.SelectContext(ctx, &rows, query, productID, branchID, asOf.Format("2006-01-02"), windowDays); err != nil {
		return nil, fmt.Errorf("error getting sales for %s@%s: %w", productID, branchID, err)
	}

	return rows, nil
}

func (r *ledgerRepository) GetStock(ctx context.Context, productID, branchID string) (domain.BranchStockState, error) {
	query := `
		SELECT branch_id, product_id, current_stock, minimum_stock
		FROM branch_stock
		WHERE product_id = $1 AND branch_id = $2
	`

	var state domain.BranchStockState
	err := r.db.GetContext(ctx, &state, query, productID, branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BranchStockState{BranchID: branchID, ProductID: productID}, nil
	}
	if err != nil {
		return domain.BranchStockState{}, fmt.Errorf("error getting stock for %s@%s: %w", productID, branchID, err)
	}

	return state, nil
}

// GetStocks reads one product's stock at many branches in one round trip.
// Branches without a row are absent from the map.
func (r *ledgerRepository) GetStocks(ctx context.Context, productID string, branchIDs []string) (map[string]domain.BranchStockState, error) {
	query := `
		SELECT branch_id, product_id, current_stock, minimum_stock
		FROM branch_stock
		WHERE product_id = $1 AND branch_id = ANY($2)
	`

	var rows []domain.BranchStockState
	if err := r.db.SelectContext(ctx, &rows, query, productID, pq.Array(branchIDs)); err != nil {
		return nil, fmt.Errorf("error getting stock for %s: %w", productID, err)
	}

	out := make(map[string]domain.BranchStockState, len(rows))
	for _, row := range rows {
		out[row.BranchID] = row
	}
	return out, nil
}

func (r *ledgerRepository) GetSubstituteGroup(ctx context.Context, productID string) ([]string, error) {
	query := `
		SELECT m.product_id
		FROM substitute_group_members m
		WHERE m.active
		  AND m.group_id = (
			SELECT group_id
			FROM substitute_group_members
			WHERE product_id = $1 AND active
			LIMIT 1
		  )
		ORDER BY m.product_id
	`

	var members []string
	if err := r.db.SelectContext(ctx, &members, query, productID); err != nil {
		return nil, fmt.Errorf("error getting substitute group for %s: %w", productID, err)
	}
	if len(members) < 2 {
		return nil, nil
	}

	return members, nil
}

func (r *ledgerRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	query := `
		SELECT id, code, description, sale_multiple, active
		FROM products
		WHERE id = $1
	`

	var p domain.Product
	err := r.db.GetContext(ctx, &p, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, repository.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("error getting product %s: %w", productID, err)
	}

	return p, nil
}

func (r *ledgerRepository) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, code, description, sale_multiple, active
		FROM products
		WHERE active
		ORDER BY id
	`

	var products []domain.Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("error listing active products: %w", err)
	}

	return products, nil
}

func (r *ledgerRepository) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	query := `
		SELECT id, name, priority
		FROM branches
		ORDER BY priority, id
	`

	var branches []domain.Branch
	if err := r.db.SelectContext(ctx, &branches, query); err != nil {
		return nil, fmt.Errorf("error listing branches: %w", err)
	}

	return branches, nil
}
