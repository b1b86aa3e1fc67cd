package drp

import (
	"sort"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
)

// SourceSubstitute is a substitute group member and its stock at the source.
type SourceSubstitute struct {
	Product domain.Product
	Stock   int64
}

// BuildDeficitSuggestions lists the substitutes the source could ship instead,
// largest stock first. Nothing is substituted into the plan itself.
func BuildDeficitSuggestions(productID string, candidates []SourceSubstitute) []domain.DeficitSuggestion {
	suggestions := make([]domain.DeficitSuggestion, 0, len(candidates))
	for _, c := range candidates {
		if c.Product.ID == productID || c.Stock <= 0 {
			continue
		}
		suggestions = append(suggestions, domain.DeficitSuggestion{
			ProductID:      c.Product.ID,
			Code:           c.Product.Code,
			Description:    c.Product.Description,
			AvailableStock: c.Stock,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].AvailableStock != suggestions[j].AvailableStock {
			return suggestions[i].AvailableStock > suggestions[j].AvailableStock
		}
		return suggestions[i].ProductID < suggestions[j].ProductID
	})
	return suggestions
}
