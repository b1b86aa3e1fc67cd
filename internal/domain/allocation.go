package domain

import "time"

// SupportedWindows lists the lookback windows (days) a caller may select
var SupportedWindows = []int{30, 60, 90, 120, 180}

// IsSupportedWindow reports whether days is one of SupportedWindows
func IsSupportedWindow(days int) bool {
	for _, w := range SupportedWindows {
		if w == days {
			return true
		}
	}
	return false
}

// Bucket is one slice of the lookback window
type Bucket struct {
	Start    time.Time `json:"start"`
	Days     int       `json:"days"`
	Quantity float64   `json:"quantity"`
	Rate     float64   `json:"rate"` // Quantity / Days
	Peak     bool      `json:"peak"`
}

// DemandProfile summarizes a branch's sales over a window
type DemandProfile struct {
	ProductID  string `json:"product_id"`
	BranchID   string `json:"branch_id"`
	WindowDays int    `json:"window_days"`

	TotalSales   float64 `json:"total_sales"`
	DailyAverage float64 `json:"daily_average"`
	StdDev       float64 `json:"std_dev"`
	// CV is nil when DailyAverage is zero
	CV         *float64   `json:"cv,omitempty"`
	Confidence Confidence `json:"confidence"`

	HasPeak              bool    `json:"has_peak"`
	AdjustedDailyAverage float64 `json:"adjusted_daily_average"`

	Buckets []Bucket `json:"buckets,omitempty"`
}

// HasHistory reports whether the profile carries any sales at all
func (p *DemandProfile) HasHistory() bool {
	return p != nil && p.TotalSales > 0
}

// AllocationRequest is the input of one planning run
type AllocationRequest struct {
	ProductID            string         `json:"product_id"`
	SourceBranchID       string         `json:"source_branch_id"`
	DestinationBranchIDs []string       `json:"destination_branch_ids"`
	WindowDays           int            `json:"window_days"`
	Policy               Policy         `json:"policy"`
	SaleMultiple         int64          `json:"sale_multiple"`
	Mode                 AllocationMode `json:"mode"`
	// AsOf closes the lookback window; zero means today
	AsOf time.Time `json:"as_of"`
	// SourceQuantity overrides the source stock (inbound receipt quantity)
	SourceQuantity *int64 `json:"source_quantity,omitempty"`
}

// DestinationResult is the per-branch line of an AllocationResult
type DestinationResult struct {
	BranchID          string           `json:"branch_id"`
	CurrentStock      int64            `json:"current_stock"`
	GroupStock        int64            `json:"group_stock"`
	MinimumStock      int64            `json:"minimum_stock"`
	TargetLevel       int64            `json:"target_level"`
	Need              int64            `json:"need"`
	SuggestedShipment int64            `json:"suggested_shipment"`
	Status            AllocationStatus `json:"status"`
	Basis             Basis            `json:"basis"`

	Confidence           Confidence `json:"confidence"`
	HasPeak              bool       `json:"has_peak"`
	DailyAverage         float64    `json:"daily_average"`
	AdjustedDailyAverage float64    `json:"adjusted_daily_average"`
}

// DeficitSuggestion is a substitute product the operator may ship instead
type DeficitSuggestion struct {
	ProductID      string `json:"product_id"`
	Code           string `json:"code"`
	Description    string `json:"description"`
	AvailableStock int64  `json:"available_stock"`
}

// AllocationResult is the output of one planning run
type AllocationResult struct {
	ProductID       string         `json:"product_id"`
	SourceBranchID  string         `json:"source_branch_id"`
	Mode            AllocationMode `json:"mode"`
	SaleMultiple    int64          `json:"sale_multiple"`
	SourceAvailable int64          `json:"source_available"`
	TotalNeed       int64          `json:"total_need"`
	TotalShipped    int64          `json:"total_shipped"`
	TotalDeficit    int64          `json:"total_deficit"`
	Unallocated     int64          `json:"unallocated"`

	Destinations       []DestinationResult `json:"destinations"`
	DeficitSuggestions []DeficitSuggestion `json:"deficit_suggestions"`
	ComputedAt         time.Time           `json:"computed_at"`
}
