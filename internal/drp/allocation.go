package drp

import (
	"math/bits"
	"sort"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
)

// RationProportional splits source across needs.
//
// When source covers the total need every branch gets its need. Otherwise each
// branch gets floor(need × source / total) and the units lost to flooring go,
// one at a time, to branches in descending need order (ties keep input order)
// so the allocation sums exactly to source.
func RationProportional(needs []int64, source int64) []int64 {
	alloc := make([]int64, len(needs))
	total := sumPositive(needs)
	if total == 0 || source <= 0 {
		return alloc
	}
	if source >= total {
		for i, n := range needs {
			if n > 0 {
				alloc[i] = n
			}
		}
		return alloc
	}

	var given int64
	for i, n := range needs {
		if n <= 0 {
			continue
		}
		alloc[i] = mulDiv(n, source, total)
		given += alloc[i]
	}

	distribute(alloc, needs, descendingNeedOrder(needs), source-given, 1)
	return alloc
}

// RationByPriority serves branches in order, each receiving
// min(need, remaining source) until the source runs out.
func RationByPriority(needs []int64, order []int, source int64) []int64 {
	alloc := make([]int64, len(needs))
	remaining := source
	for _, i := range order {
		if remaining <= 0 {
			break
		}
		if needs[i] <= 0 {
			continue
		}
		give := needs[i]
		if give > remaining {
			give = remaining
		}
		alloc[i] = give
		remaining -= give
	}
	return alloc
}

func ration(mode domain.AllocationMode, needs []int64, order []int, source int64) []int64 {
	if mode == domain.ModePriority {
		return RationByPriority(needs, order, source)
	}
	return RationProportional(needs, source)
}

// distribute hands out leftover in steps of unit, cycling through order, to
// branches whose remaining need is at least one unit.
func distribute(alloc, needs []int64, order []int, leftover, unit int64) int64 {
	for leftover >= unit {
		progressed := false
		for _, i := range order {
			if leftover < unit {
				break
			}
			if needs[i]-alloc[i] >= unit {
				alloc[i] += unit
				leftover -= unit
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return leftover
}

// fillInOrder is distribute without cycling: each branch is topped up as far
// as it can go before moving to the next one.
func fillInOrder(alloc, needs []int64, order []int, leftover, unit int64) int64 {
	for _, i := range order {
		for leftover >= unit && needs[i]-alloc[i] >= unit {
			alloc[i] += unit
			leftover -= unit
		}
	}
	return leftover
}

func descendingNeedOrder(needs []int64) []int {
	order := make([]int, 0, len(needs))
	for i, n := range needs {
		if n > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return needs[order[a]] > needs[order[b]]
	})
	return order
}

// priorityOrder ranks branch indexes by the configured sequence. Branches not
// in the sequence follow, in their request order.
func priorityOrder(branchIDs []string, sequence []string) []int {
	rank := make(map[string]int, len(sequence))
	for i, id := range sequence {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}

	order := make([]int, len(branchIDs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, okA := rank[branchIDs[order[a]]]
		rb, okB := rank[branchIDs[order[b]]]
		switch {
		case okA && okB:
			return ra < rb
		case okA != okB:
			return okA
		default:
			return false
		}
	})
	return order
}

func allocationStatus(mode domain.AllocationMode, need, shipped, multiple int64, short bool) domain.AllocationStatus {
	switch {
	case need <= 0 || shipped >= need:
		return domain.StatusOK
	case shipped == 0:
		return domain.StatusDeficit
	case multiple > 1 && need-shipped < multiple && !short:
		// only a partial case-pack is missing
		return domain.StatusOK
	case mode == domain.ModeProportional && short:
		return domain.StatusRationed
	default:
		return domain.StatusDeficit
	}
}

func sumPositive(values []int64) int64 {
	var total int64
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	return total
}

// mulDiv returns floor(a*b/c) for 0 <= a <= c, 0 <= b < c without overflow.
func mulDiv(a, b, c int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, _ := bits.Div64(hi, lo, uint64(c))
	return int64(q)
}
