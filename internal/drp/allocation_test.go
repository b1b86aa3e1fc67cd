package drp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRationProportional(t *testing.T) {
	t.Run("enough source", func(t *testing.T) {
		assert.Equal(t, []int64{80, 0, 30}, RationProportional([]int64{80, 0, 30}, 200))
	})
	t.Run("exact split", func(t *testing.T) {
		assert.Equal(t, []int64{50, 150}, RationProportional([]int64{100, 300}, 200))
	})
	t.Run("remainder goes to largest need", func(t *testing.T) {
		// 51.85 / 148.14 floor to 51 / 148, the lost unit goes to B
		assert.Equal(t, []int64{51, 149}, RationProportional([]int64{105, 300}, 200))
	})
	t.Run("ties keep request order", func(t *testing.T) {
		assert.Equal(t, []int64{4, 3, 3}, RationProportional([]int64{5, 5, 5}, 10))
	})
	t.Run("no source", func(t *testing.T) {
		assert.Equal(t, []int64{0, 0}, RationProportional([]int64{5, 5}, 0))
	})
	t.Run("large quantities do not overflow", func(t *testing.T) {
		big := int64(math.MaxInt64 / 4)
		got := RationProportional([]int64{big, big}, big)
		assert.Equal(t, big, got[0]+got[1])
	})
}

func TestRationByPriority(t *testing.T) {
	needs := []int64{10, 10, 10}
	assert.Equal(t, []int64{10, 5, 0}, RationByPriority(needs, []int{0, 1, 2}, 15))
	assert.Equal(t, []int64{0, 5, 10}, RationByPriority(needs, []int{2, 1, 0}, 15))
	assert.Equal(t, []int64{10, 10, 10}, RationByPriority(needs, []int{0, 1, 2}, 100))
}

func TestPriorityOrder(t *testing.T) {
	got := priorityOrder([]string{"X", "C", "A", "Y", "B"}, []string{"A", "B", "C"})
	assert.Equal(t, []int{2, 4, 1, 0, 3}, got)
}

func TestAllocationStatus(t *testing.T) {
	prop, prio := domain.ModeProportional, domain.ModePriority

	assert.Equal(t, domain.StatusOK, allocationStatus(prop, 0, 0, 1, true))
	assert.Equal(t, domain.StatusOK, allocationStatus(prop, 10, 10, 1, true))
	assert.Equal(t, domain.StatusRationed, allocationStatus(prop, 10, 4, 1, true))
	assert.Equal(t, domain.StatusDeficit, allocationStatus(prop, 10, 0, 1, true))
	assert.Equal(t, domain.StatusDeficit, allocationStatus(prio, 10, 5, 1, true))
	// only a partial pack is missing and supply was not short
	assert.Equal(t, domain.StatusOK, allocationStatus(prop, 15, 10, 10, false))
}

// Conservation, need bounds and exact exhaustion over random inputs.
func TestRationingProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 2000; iter++ {
		n := 1 + rng.Intn(6)
		needs := make([]int64, n)
		order := rng.Perm(n)
		var total int64
		for i := range needs {
			if rng.Intn(4) > 0 {
				needs[i] = rng.Int63n(500)
			}
			total += needs[i]
		}
		source := rng.Int63n(1200)
		multiple := []int64{1, 1, 2, 5, 6, 10, 12, 50}[rng.Intn(8)]
		mode := domain.ModeProportional
		if rng.Intn(2) == 0 {
			mode = domain.ModePriority
		}

		raw := ration(mode, needs, order, source)
		var rawSum int64
		for i, a := range raw {
			assert.GreaterOrEqual(t, a, int64(0))
			assert.LessOrEqual(t, a, needs[i])
			rawSum += a
		}
		expected := total
		if source < total {
			expected = source
		}
		assert.Equal(t, expected, rawSum, "needs=%v source=%d mode=%s", needs, source, mode)

		final := ApplySaleMultiple(mode, raw, needs, order, source, multiple)
		var finalSum int64
		for i, a := range final {
			assert.LessOrEqual(t, a, needs[i], "needs=%v source=%d m=%d", needs, source, multiple)
			assert.GreaterOrEqual(t, a, int64(0))
			assert.Zero(t, a%multiple, "needs=%v source=%d m=%d final=%v", needs, source, multiple, final)
			if needs[i] == 0 {
				assert.Zero(t, a)
			}
			finalSum += a
		}
		assert.LessOrEqual(t, finalSum, source, "needs=%v source=%d m=%d final=%v", needs, source, multiple, final)
	}
}
