package drp

import (
	"testing"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(priority ...string) *Engine {
	e := NewEngine(priority)
	e.Now = func() time.Time { return asOf }
	return e
}

func request(mode domain.AllocationMode, multiple int64, destinations ...string) domain.AllocationRequest {
	return domain.AllocationRequest{
		ProductID:            "P1",
		SourceBranchID:       "CD",
		DestinationBranchIDs: destinations,
		WindowDays:           30,
		Policy:               domain.Policy{LeadTimeDays: 5, SafetyDays: 5},
		SaleMultiple:         multiple,
		Mode:                 mode,
	}
}

// minimumOnly is a destination whose target comes from its minimum stock.
func minimumOnly(branchID string, current, minimum int64) DestinationSnapshot {
	return DestinationSnapshot{
		BranchID: branchID,
		Stock:    domain.BranchStockState{BranchID: branchID, ProductID: "P1", CurrentStock: current, MinimumStock: minimum},
	}
}

func shipments(r *domain.AllocationResult) map[string]int64 {
	out := make(map[string]int64, len(r.Destinations))
	for _, d := range r.Destinations {
		out[d.BranchID] = d.SuggestedShipment
	}
	return out
}

func TestPlan_SingleBranchFullyServed(t *testing.T) {
	snap := Snapshot{
		Request:     request(domain.ModeProportional, 1, "A"),
		SourceStock: 200,
		Destinations: []DestinationSnapshot{{
			BranchID: "A",
			Sales:    steadySales("A", 30, 10),
			Stock:    domain.BranchStockState{BranchID: "A", ProductID: "P1", CurrentStock: 20},
		}},
	}

	r, err := newTestEngine().Plan(snap)
	require.NoError(t, err)

	d := r.Destinations[0]
	assert.Equal(t, int64(100), d.TargetLevel)
	assert.Equal(t, int64(80), d.Need)
	assert.Equal(t, int64(80), d.SuggestedShipment)
	assert.Equal(t, domain.StatusOK, d.Status)
	assert.Equal(t, domain.BasisSales, d.Basis)
	assert.Equal(t, domain.ConfidenceHigh, d.Confidence)
	assert.Equal(t, int64(200), r.SourceAvailable)
	assert.Equal(t, int64(0), r.TotalDeficit)
	assert.Equal(t, int64(120), r.Unallocated)
	assert.Empty(t, r.DeficitSuggestions)
}

func TestPlan_ProportionalSplit(t *testing.T) {
	snap := Snapshot{
		Request:      request(domain.ModeProportional, 1, "A", "B"),
		SourceStock:  200,
		Destinations: []DestinationSnapshot{minimumOnly("A", 0, 100), minimumOnly("B", 0, 300)},
	}

	r, err := newTestEngine().Plan(snap)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"A": 50, "B": 150}, shipments(r))
	assert.Equal(t, int64(400), r.TotalNeed)
	assert.Equal(t, int64(200), r.TotalShipped)
	assert.Equal(t, int64(200), r.TotalDeficit)
	assert.Equal(t, int64(0), r.Unallocated)
	for _, d := range r.Destinations {
		assert.Equal(t, domain.StatusRationed, d.Status)
		assert.Equal(t, domain.BasisMinimumStock, d.Basis)
	}
}

func TestPlan_SaleMultiple(t *testing.T) {
	t.Run("aligned split is kept", func(t *testing.T) {
		snap := Snapshot{
			Request:      request(domain.ModeProportional, 10, "A", "B"),
			SourceStock:  200,
			Destinations: []DestinationSnapshot{minimumOnly("A", 0, 100), minimumOnly("B", 0, 300)},
		}
		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"A": 50, "B": 150}, shipments(r))
	})

	t.Run("rounded-down units move to the other branch", func(t *testing.T) {
		snap := Snapshot{
			Request:      request(domain.ModeProportional, 10, "A", "B"),
			SourceStock:  200,
			Destinations: []DestinationSnapshot{minimumOnly("A", 0, 105), minimumOnly("B", 0, 300)},
		}
		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"A": 50, "B": 150}, shipments(r))
		assert.Equal(t, int64(200), r.TotalShipped)
	})

	t.Run("product multiple applies when the request has none", func(t *testing.T) {
		snap := Snapshot{
			Request:      request(domain.ModeProportional, 0, "A"),
			Product:      domain.Product{ID: "P1", SaleMultiple: 6},
			SourceStock:  100,
			Destinations: []DestinationSnapshot{minimumOnly("A", 0, 20)},
		}
		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)
		assert.Equal(t, int64(6), r.SaleMultiple)
		assert.Equal(t, int64(18), r.Destinations[0].SuggestedShipment)
		assert.Equal(t, domain.StatusOK, r.Destinations[0].Status)
		assert.Equal(t, int64(0), r.TotalDeficit)
	})

	t.Run("pack gap with ample source is not a deficit", func(t *testing.T) {
		snap := Snapshot{
			Request:      request(domain.ModeProportional, 10, "A"),
			SourceStock:  100,
			Destinations: []DestinationSnapshot{minimumOnly("A", 0, 15)},
			SourceSubstitutes: []SourceSubstitute{
				{Product: domain.Product{ID: "P2", Code: "F-2"}, Stock: 30},
			},
		}
		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)
		assert.Equal(t, int64(15), r.TotalNeed)
		assert.Equal(t, int64(10), r.TotalShipped)
		assert.Equal(t, domain.StatusOK, r.Destinations[0].Status)
		assert.Equal(t, int64(0), r.TotalDeficit)
		assert.Equal(t, int64(90), r.Unallocated)
		assert.Empty(t, r.DeficitSuggestions)
	})

	t.Run("short source reports the source shortfall", func(t *testing.T) {
		snap := Snapshot{
			Request:      request(domain.ModeProportional, 10, "A", "B"),
			SourceStock:  25,
			Destinations: []DestinationSnapshot{minimumOnly("A", 0, 20), minimumOnly("B", 0, 20)},
		}
		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)
		assert.Equal(t, int64(20), r.TotalShipped)
		assert.Equal(t, int64(15), r.TotalDeficit)
		assert.Equal(t, int64(5), r.Unallocated)
	})
}

func TestPlan_PriorityReceipt(t *testing.T) {
	qty := int64(15)
	req := request(domain.ModePriority, 1, "C", "A", "B")
	req.SourceQuantity = &qty
	snap := Snapshot{
		Request:     req,
		SourceStock: 999,
		Destinations: []DestinationSnapshot{
			minimumOnly("C", 0, 10),
			minimumOnly("A", 0, 10),
			minimumOnly("B", 0, 10),
		},
	}

	r, err := newTestEngine("A", "B", "C").Plan(snap)
	require.NoError(t, err)

	assert.Equal(t, int64(15), r.SourceAvailable)
	require.Len(t, r.Destinations, 3)
	assert.Equal(t, "C", r.Destinations[0].BranchID, "results keep request order")

	byBranch := make(map[string]domain.DestinationResult)
	for _, d := range r.Destinations {
		byBranch[d.BranchID] = d
	}
	assert.Equal(t, int64(10), byBranch["A"].SuggestedShipment)
	assert.Equal(t, domain.StatusOK, byBranch["A"].Status)
	assert.Equal(t, int64(5), byBranch["B"].SuggestedShipment)
	assert.Equal(t, domain.StatusDeficit, byBranch["B"].Status)
	assert.Equal(t, int64(0), byBranch["C"].SuggestedShipment)
	assert.Equal(t, domain.StatusDeficit, byBranch["C"].Status)
	assert.Equal(t, int64(15), r.TotalDeficit)
}

func TestPlan_SubstituteGroup(t *testing.T) {
	t.Run("group sales stand in for the product", func(t *testing.T) {
		snap := Snapshot{
			Request:     request(domain.ModeProportional, 1, "A"),
			SourceStock: 500,
			Destinations: []DestinationSnapshot{{
				BranchID: "A",
				Stock:    domain.BranchStockState{BranchID: "A", ProductID: "P1"},
				Members: []MemberSnapshot{
					{ProductID: "P1"},
					{ProductID: "P2", Sales: steadySales("A", 30, 10), Stock: 30},
				},
			}},
		}

		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)

		d := r.Destinations[0]
		assert.Equal(t, domain.BasisSubstituteGroup, d.Basis)
		assert.Equal(t, int64(100), d.TargetLevel)
		assert.Equal(t, int64(30), d.GroupStock)
		assert.Equal(t, int64(70), d.Need)
		assert.Equal(t, int64(70), d.SuggestedShipment)
	})

	t.Run("empty group leaves the branch unplannable", func(t *testing.T) {
		snap := Snapshot{
			Request:     request(domain.ModeProportional, 1, "A"),
			SourceStock: 500,
			Destinations: []DestinationSnapshot{{
				BranchID: "A",
				Stock:    domain.BranchStockState{BranchID: "A", ProductID: "P1", CurrentStock: 4},
				Members:  []MemberSnapshot{{ProductID: "P2", Stock: 8}},
			}},
		}

		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)

		d := r.Destinations[0]
		assert.Equal(t, domain.BasisNoHistory, d.Basis)
		assert.Equal(t, domain.StatusNoHistory, d.Status)
		assert.Equal(t, int64(0), d.TargetLevel)
		assert.Equal(t, int64(0), d.GroupStock)
		assert.Equal(t, int64(0), d.SuggestedShipment)
	})

	t.Run("minimum stock above the group target ignores group stock", func(t *testing.T) {
		snap := Snapshot{
			Request:     request(domain.ModeProportional, 1, "A"),
			SourceStock: 500,
			Destinations: []DestinationSnapshot{{
				BranchID: "A",
				Stock:    domain.BranchStockState{BranchID: "A", ProductID: "P1", MinimumStock: 50},
				Members: []MemberSnapshot{
					{ProductID: "P2", Sales: steadySales("A", 30, 1), Stock: 40},
				},
			}},
		}

		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)

		d := r.Destinations[0]
		assert.Equal(t, domain.BasisMinimumStock, d.Basis)
		assert.Equal(t, int64(50), d.TargetLevel)
		assert.Equal(t, int64(0), d.GroupStock)
		assert.Equal(t, int64(50), d.Need)
		assert.Equal(t, int64(50), d.SuggestedShipment)
	})

	t.Run("group sales elsewhere do not plan this branch", func(t *testing.T) {
		snap := Snapshot{
			Request:     request(domain.ModeProportional, 1, "A", "B"),
			SourceStock: 500,
			Destinations: []DestinationSnapshot{
				{
					BranchID: "A",
					Stock:    domain.BranchStockState{BranchID: "A", ProductID: "P1"},
					Members:  []MemberSnapshot{{ProductID: "P2", Stock: 3}},
				},
				{
					BranchID: "B",
					Stock:    domain.BranchStockState{BranchID: "B", ProductID: "P1"},
					Members:  []MemberSnapshot{{ProductID: "P2", Sales: steadySales("B", 30, 2)}},
				},
			},
		}

		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusNoHistory, r.Destinations[0].Status)
		assert.Equal(t, int64(0), r.Destinations[0].SuggestedShipment)
		assert.Equal(t, domain.BasisSubstituteGroup, r.Destinations[1].Basis)
		assert.Equal(t, int64(20), r.Destinations[1].SuggestedShipment)
	})

	t.Run("minimum stock beats an empty history", func(t *testing.T) {
		snap := Snapshot{
			Request:      request(domain.ModeProportional, 1, "A"),
			SourceStock:  500,
			Destinations: []DestinationSnapshot{minimumOnly("A", 1, 6)},
		}

		r, err := newTestEngine().Plan(snap)
		require.NoError(t, err)
		assert.Equal(t, domain.BasisMinimumStock, r.Destinations[0].Basis)
		assert.Equal(t, int64(5), r.Destinations[0].SuggestedShipment)
	})
}

func TestPlan_ZeroNeedBranch(t *testing.T) {
	snap := Snapshot{
		Request:      request(domain.ModeProportional, 1, "A", "B"),
		SourceStock:  10,
		Destinations: []DestinationSnapshot{minimumOnly("A", 50, 40), minimumOnly("B", 0, 30)},
	}

	r, err := newTestEngine().Plan(snap)
	require.NoError(t, err)

	assert.Equal(t, int64(0), r.Destinations[0].Need)
	assert.Equal(t, int64(0), r.Destinations[0].SuggestedShipment)
	assert.Equal(t, domain.StatusOK, r.Destinations[0].Status)
	assert.Equal(t, int64(10), r.Destinations[1].SuggestedShipment)
	assert.Equal(t, domain.StatusRationed, r.Destinations[1].Status)
}

func TestPlan_DeficitSuggestions(t *testing.T) {
	snap := Snapshot{
		Request:      request(domain.ModeProportional, 1, "A"),
		SourceStock:  5,
		Destinations: []DestinationSnapshot{minimumOnly("A", 0, 20)},
		SourceSubstitutes: []SourceSubstitute{
			{Product: domain.Product{ID: "P2", Code: "F-2", Description: "filter B"}, Stock: 5},
			{Product: domain.Product{ID: "P3", Code: "F-3", Description: "filter C"}, Stock: 0},
			{Product: domain.Product{ID: "P4", Code: "F-4", Description: "filter D"}, Stock: 12},
		},
	}

	r, err := newTestEngine().Plan(snap)
	require.NoError(t, err)

	assert.Equal(t, int64(15), r.TotalDeficit)
	require.Len(t, r.DeficitSuggestions, 2)
	assert.Equal(t, "P4", r.DeficitSuggestions[0].ProductID)
	assert.Equal(t, int64(12), r.DeficitSuggestions[0].AvailableStock)
	assert.Equal(t, "P2", r.DeficitSuggestions[1].ProductID)
}

func TestPlan_Validation(t *testing.T) {
	base := func() Snapshot {
		return Snapshot{
			Request:      request(domain.ModeProportional, 1, "A"),
			SourceStock:  10,
			Destinations: []DestinationSnapshot{minimumOnly("A", 0, 5)},
		}
	}

	cases := map[string]struct {
		mutate func(*Snapshot)
		want   error
	}{
		"missing product":       {func(s *Snapshot) { s.Request.ProductID = "" }, ErrInvalidInput},
		"no destinations":       {func(s *Snapshot) { s.Request.DestinationBranchIDs = nil }, ErrInvalidInput},
		"source as destination": {func(s *Snapshot) { s.Request.SourceBranchID = "A" }, ErrInvalidInput},
		"bad window":            {func(s *Snapshot) { s.Request.WindowDays = 7 }, ErrUnsupportedWindow},
		"bad mode":              {func(s *Snapshot) { s.Request.Mode = "lottery" }, ErrInvalidInput},
		"negative multiple":     {func(s *Snapshot) { s.Request.SaleMultiple = -2 }, ErrInvalidInput},
		"negative source":       {func(s *Snapshot) { s.SourceStock = -1 }, ErrInvalidInput},
		"negative stock":        {func(s *Snapshot) { s.Destinations[0].Stock.CurrentStock = -3 }, ErrInvalidInput},
		"snapshot mismatch":     {func(s *Snapshot) { s.Destinations[0].BranchID = "Z" }, ErrInvalidInput},
		"negative sales": {func(s *Snapshot) {
			s.Destinations[0].Sales = []domain.SalesObservation{{BranchID: "A", Date: asOf, Quantity: -1}}
		}, ErrInvalidInput},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			snap := base()
			tc.mutate(&snap)
			_, err := newTestEngine().Plan(snap)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSuggestMinimumStock(t *testing.T) {
	p, err := Profile("P1", "A", steadySales("A", 30, 1.5), 30, asOf)
	require.NoError(t, err)

	s := SuggestMinimumStock(p, domain.Policy{LeadTimeDays: 3, SafetyDays: 4}, asOf)
	assert.Equal(t, int64(11), s.Suggested) // ceil(1.5 × 7)
	assert.Equal(t, domain.BasisSales, s.Basis)

	empty, err := Profile("P1", "B", nil, 30, asOf)
	require.NoError(t, err)
	s = SuggestMinimumStock(empty, domain.Policy{LeadTimeDays: 3, SafetyDays: 4}, asOf)
	assert.Equal(t, int64(0), s.Suggested)
	assert.Equal(t, domain.BasisNoHistory, s.Basis)
}
