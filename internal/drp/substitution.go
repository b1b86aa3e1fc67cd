package drp

import (
	"fmt"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
)

// MemberProfile is a substitute group member's demand and stock at one branch.
type MemberProfile struct {
	ProductID string
	Profile   *domain.DemandProfile
	Stock     int64
}

// Resolution is the demand signal chosen for one branch.
type Resolution struct {
	Profile *domain.DemandProfile
	// Basis is sales, substitute_group or no_history. Minimum stock is decided later.
	Basis      domain.Basis
	GroupStock int64
	Members    []string
}

// ResolveDemand keeps the product's own profile when it has sales. Otherwise it
// sums the bucket series of every other group member at the branch and, if the
// group sold anything, returns that aggregate with the members' combined stock.
func ResolveDemand(own *domain.DemandProfile, members []MemberProfile) (Resolution, error) {
	if own.HasHistory() {
		return Resolution{Profile: own, Basis: domain.BasisSales}, nil
	}

	if len(members) == 0 {
		return Resolution{Profile: own, Basis: domain.BasisNoHistory}, nil
	}

	buckets := make([]domain.Bucket, len(own.Buckets))
	for i, b := range own.Buckets {
		buckets[i] = domain.Bucket{Start: b.Start, Days: b.Days}
	}

	var (
		groupStock int64
		ids        = make([]string, 0, len(members))
	)
	for _, m := range members {
		if m.Profile == nil {
			continue
		}
		if len(m.Profile.Buckets) != len(buckets) {
			return Resolution{}, fmt.Errorf("%w: member %s profiled over a different window", ErrInvalidInput, m.ProductID)
		}
		for i, b := range m.Profile.Buckets {
			buckets[i].Quantity += b.Quantity
		}
		groupStock += m.Stock
		ids = append(ids, m.ProductID)
	}

	for i := range buckets {
		buckets[i].Rate = buckets[i].Quantity / float64(buckets[i].Days)
	}

	combined := profileFromBuckets(own.ProductID, own.BranchID, own.WindowDays, buckets)
	if !combined.HasHistory() {
		return Resolution{Profile: own, Basis: domain.BasisNoHistory}, nil
	}

	return Resolution{
		Profile:    combined,
		Basis:      domain.BasisSubstituteGroup,
		GroupStock: groupStock,
		Members:    ids,
	}, nil
}
