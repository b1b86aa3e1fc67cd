package drp

import (
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// TargetLevel derives the stock a branch should hold ("meta").
//
//	sales target = ceil(adjusted daily average × (lead time + safety days))
//
// A configured minimum stock above the sales target wins. Without sales and
// without a minimum the branch has no target and basis no_history.
func TargetLevel(res Resolution, minimumStock int64, policy domain.Policy) (int64, domain.Basis) {
	var salesTarget int64
	if res.Basis != domain.BasisNoHistory && res.Profile != nil {
		salesTarget = salesTargetLevel(res.Profile.AdjustedDailyAverage, policy.CoverageDays())
	}

	if minimumStock > salesTarget {
		return minimumStock, domain.BasisMinimumStock
	}
	if res.Basis == domain.BasisNoHistory {
		return 0, domain.BasisNoHistory
	}
	return salesTarget, res.Basis
}

func salesTargetLevel(dailyAverage float64, coverageDays int) int64 {
	if dailyAverage <= 0 || coverageDays <= 0 {
		return 0
	}
	// decimal keeps 0.1 × 30 at exactly 3 before the ceiling.
	return decimal.NewFromFloat(dailyAverage).
		Mul(decimal.NewFromInt(int64(coverageDays))).
		Ceil().
		IntPart()
}

// SuggestMinimumStock turns a branch's own sales profile into a suggested
// minimum stock: the sales-based target level for the policy's coverage.
func SuggestMinimumStock(profile *domain.DemandProfile, policy domain.Policy, computedAt time.Time) domain.MinimumStockSuggestion {
	s := domain.MinimumStockSuggestion{
		ProductID:  profile.ProductID,
		BranchID:   profile.BranchID,
		Confidence: profile.Confidence,
		HasPeak:    profile.HasPeak,
		Basis:      domain.BasisNoHistory,
		ComputedAt: computedAt,
	}
	if !profile.HasHistory() {
		return s
	}

	s.DailyAverage = profile.AdjustedDailyAverage
	s.Suggested = salesTargetLevel(profile.AdjustedDailyAverage, policy.CoverageDays())
	s.Basis = domain.BasisSales
	return s
}
