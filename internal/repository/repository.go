// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
)

// ErrNotFound is returned when a product or run does not exist
var ErrNotFound = errors.New("not found")

// SalesReader reads the sales ledger
type SalesReader interface {
	// GetSales returns the daily sales of a product at a branch for the
	// windowDays ending at asOf, ordered by date
	GetSales(ctx context.Context, productID, branchID string, windowDays int, asOf time.Time) ([]domain.SalesObservation, error)
}

// StockReader reads on-hand and minimum stock. A product never stocked at a
// branch yields a zero state, not an error.
type StockReader interface {
	GetStock(ctx context.Context, productID, branchID string) (domain.BranchStockState, error)
}

// BulkStockReader is implemented by ledgers that can read many branches at
// once. Branches without a row are absent from the map.
type BulkStockReader interface {
	GetStocks(ctx context.Context, productID string, branchIDs []string) (map[string]domain.BranchStockState, error)
}

// SubstituteGroupReader resolves "combinado" membership
type SubstituteGroupReader interface {
	// GetSubstituteGroup returns every product id of the product's active
	// group, the product included, or nil when it belongs to none
	GetSubstituteGroup(ctx context.Context, productID string) ([]string, error)
}

// ProductReader reads the product catalog
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)
}

// BranchReader lists the branches known to the ledger
type BranchReader interface {
	ListBranches(ctx context.Context) ([]domain.Branch, error)
}

// SuggestionWriter persists minimum-stock suggestions produced by batch jobs
type SuggestionWriter interface {
	SaveMinimumStockSuggestions(ctx context.Context, suggestions []domain.MinimumStockSuggestion) error
}

// Ledger is the full read side the planner depends on
type Ledger interface {
	SalesReader
	StockReader
	SubstituteGroupReader
	ProductReader
	BranchReader
}
