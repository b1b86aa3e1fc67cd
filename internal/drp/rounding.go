package drp

import "github.com/andresuchdata/autodrp/backend-go/internal/domain"

// maxRoundingPasses bounds the re-rationing loop run when rounding overshoots
// the source.
const maxRoundingPasses = 3

// ApplySaleMultiple rounds rationed shipments to whole case-packs of size
// multiple without breaking conservation or need bounds.
//
// Each shipment is rounded down to a multiple. A positive shipment that would
// become zero is raised to one pack when the branch needs at least a full pack.
// If the rounded total exceeds source, rationing is re-run with the rounded
// vector as the need (up to maxRoundingPasses times); anything still over is
// removed a pack at a time from the branch with the smallest need. Units freed
// by rounding down are finally handed back in whole packs following the mode
// order.
func ApplySaleMultiple(mode domain.AllocationMode, shipments, needs []int64, order []int, source, multiple int64) []int64 {
	out := make([]int64, len(shipments))
	copy(out, shipments)
	if multiple <= 1 {
		return out
	}

	out = roundToMultiple(out, needs, multiple)
	for pass := 0; pass < maxRoundingPasses && sumPositive(out) > source; pass++ {
		out = roundToMultiple(ration(mode, out, order, source), needs, multiple)
	}

	if sumPositive(out) > source {
		dropPacks(out, needs, modeOrder(mode, needs, order), source, multiple)
	}

	leftover := source - sumPositive(out)
	if leftover >= multiple {
		if mode == domain.ModePriority {
			fillInOrder(out, needs, order, leftover, multiple)
		} else {
			distribute(out, needs, descendingNeedOrder(needs), leftover, multiple)
		}
	}
	return out
}

func roundToMultiple(shipments, needs []int64, multiple int64) []int64 {
	out := make([]int64, len(shipments))
	for i, s := range shipments {
		if s <= 0 {
			continue
		}
		down := s - s%multiple
		if down == 0 && multiple <= needs[i] {
			down = multiple
		}
		for down > 0 && down > needs[i] {
			down -= multiple
		}
		if down < 0 {
			down = 0
		}
		out[i] = down
	}
	return out
}

// dropPacks removes one pack at a time from the positive shipment with the
// smallest need until the total fits. Ties go to the branch served last.
func dropPacks(out, needs []int64, order []int, source, multiple int64) {
	for sumPositive(out) > source {
		victim := -1
		for _, i := range order {
			if out[i] <= 0 {
				continue
			}
			if victim == -1 || needs[i] <= needs[victim] {
				victim = i
			}
		}
		if victim == -1 {
			return
		}
		out[victim] -= multiple
		if out[victim] < 0 {
			out[victim] = 0
		}
	}
}

func modeOrder(mode domain.AllocationMode, needs []int64, order []int) []int {
	if mode == domain.ModePriority {
		return order
	}
	return descendingNeedOrder(needs)
}
