// backend-go/internal/domain/models.go
package domain

import "time"

// Product represents a sellable item in the catalog
type Product struct {
	ID           string `json:"id" db:"id"`
	Code         string `json:"code" db:"code"`
	Description  string `json:"description" db:"description"`
	SaleMultiple int64  `json:"sale_multiple" db:"sale_multiple"`
	Active       bool   `json:"active" db:"active"`
}

// Branch represents a store or warehouse location
type Branch struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Priority int    `json:"priority" db:"priority"`
}

// SalesObservation is one day of sales for a product at a branch
type SalesObservation struct {
	BranchID string    `json:"branch_id" db:"branch_id"`
	Date     time.Time `json:"date" db:"sale_date"`
	Quantity float64   `json:"quantity" db:"quantity"`
}

// BranchStockState holds the on-hand and configured floor for a product at a branch
type BranchStockState struct {
	BranchID     string `json:"branch_id" db:"branch_id"`
	ProductID    string `json:"product_id" db:"product_id"`
	CurrentStock int64  `json:"current_stock" db:"current_stock"`
	MinimumStock int64  `json:"minimum_stock" db:"minimum_stock"`
}

// Policy carries the replenishment cycle parameters
type Policy struct {
	LeadTimeDays int `json:"lead_time_days"`
	SafetyDays   int `json:"safety_days"`
}

// CoverageDays is the number of days the target level must cover
func (p Policy) CoverageDays() int {
	return p.LeadTimeDays + p.SafetyDays
}

// MinimumStockSuggestion is the output of the batch minimum-stock job for one product/branch
type MinimumStockSuggestion struct {
	ProductID    string     `json:"product_id" db:"product_id"`
	BranchID     string     `json:"branch_id" db:"branch_id"`
	DailyAverage float64    `json:"daily_average" db:"daily_average"`
	Confidence   Confidence `json:"confidence" db:"confidence"`
	HasPeak      bool       `json:"has_peak" db:"has_peak"`
	Suggested    int64      `json:"suggested_minimum" db:"suggested_minimum"`
	Basis        Basis      `json:"basis" db:"basis"`
	ComputedAt   time.Time  `json:"computed_at" db:"computed_at"`
}
