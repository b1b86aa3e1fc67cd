package service

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/cache"
	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/drp"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

func daily(branchID string, days int, qty float64) []domain.SalesObservation {
	out := make([]domain.SalesObservation, days)
	for i := range out {
		out[i] = domain.SalesObservation{BranchID: branchID, Date: asOf.AddDate(0, 0, -i), Quantity: qty}
	}
	return out
}

// seededStore: P1 sells 10/day at A and 30/day at B; P2 is its substitute
// with no sales of its own at C.
func seededStore() *memory.Store {
	s := memory.NewStore()
	s.AddProduct(domain.Product{ID: "P1", Code: "OF-1", Description: "Oil filter", SaleMultiple: 1, Active: true})
	s.AddProduct(domain.Product{ID: "P2", Code: "OF-2", Description: "Oil filter alt", SaleMultiple: 1, Active: true})
	for i, id := range []string{"CD", "A", "B", "C"} {
		s.AddBranch(domain.Branch{ID: id, Name: id, Priority: i})
	}

	s.AddSales("P1", daily("A", 30, 10)...)
	s.AddSales("P1", daily("B", 30, 30)...)
	s.AddSales("P2", daily("C", 30, 5)...)

	s.SetStock(domain.BranchStockState{BranchID: "CD", ProductID: "P1", CurrentStock: 200})
	s.SetStock(domain.BranchStockState{BranchID: "CD", ProductID: "P2", CurrentStock: 25})
	s.SetStock(domain.BranchStockState{BranchID: "C", ProductID: "P2", CurrentStock: 10})
	s.SetSubstituteGroup("P1", "P2")
	return s
}

func newPlanner(store *memory.Store, c cache.PlanCache) *Planner {
	engine := drp.NewEngine([]string{"B", "A", "C"})
	engine.Now = func() time.Time { return asOf }
	return NewPlanner(store, engine, c, PlannerConfig{
		Policy:       domain.Policy{LeadTimeDays: 5, SafetyDays: 5},
		WindowDays:   30,
		SourceBranch: "CD",
		Concurrency:  2,
	})
}

type countingCache struct {
	stored      map[string]*domain.AllocationResult
	hits        int
	invalidated []string
}

func (c *countingCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	r, ok := c.stored[cache.BuildPlanKey(req)]
	if ok {
		c.hits++
	}
	return r, ok, nil
}

func (c *countingCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	c.stored[cache.BuildPlanKey(req)] = result
	return nil
}

func (c *countingCache) InvalidateProduct(ctx context.Context, productID string) error {
	c.invalidated = append(c.invalidated, productID)
	return nil
}

func (c *countingCache) InvalidateAll(ctx context.Context) error {
	c.invalidated = append(c.invalidated, "*")
	return nil
}

func TestPlanner_Plan(t *testing.T) {
	p := newPlanner(seededStore(), nil)

	result, err := p.Plan(context.Background(), domain.AllocationRequest{
		ProductID: "P1",
		AsOf:      asOf,
	})
	require.NoError(t, err)

	// defaults: source CD, destinations every other branch, 30-day window
	require.Len(t, result.Destinations, 3)
	byBranch := map[string]domain.DestinationResult{}
	for _, d := range result.Destinations {
		byBranch[d.BranchID] = d
	}

	assert.Equal(t, int64(100), byBranch["A"].Need)
	assert.Equal(t, int64(300), byBranch["B"].Need)
	// C has no own sales: the P2 group demand (5/day × 10) minus P2's stock there
	assert.Equal(t, domain.BasisSubstituteGroup, byBranch["C"].Basis)
	assert.Equal(t, int64(10), byBranch["C"].GroupStock)
	assert.Equal(t, int64(40), byBranch["C"].Need)

	assert.Equal(t, int64(200), result.SourceAvailable)
	assert.Equal(t, int64(440), result.TotalNeed)
	assert.Equal(t, int64(200), result.TotalShipped)
	assert.Equal(t, int64(240), result.TotalDeficit)

	require.Len(t, result.DeficitSuggestions, 1)
	assert.Equal(t, "P2", result.DeficitSuggestions[0].ProductID)
	assert.Equal(t, int64(25), result.DeficitSuggestions[0].AvailableStock)
}

func TestPlanner_PlanDefaultsAsOfToEngineClock(t *testing.T) {
	p := newPlanner(seededStore(), nil)

	// the store's sales end at asOf, which is also the engine clock
	result, err := p.Plan(context.Background(), domain.AllocationRequest{
		ProductID:            "P1",
		DestinationBranchIDs: []string{"A"},
	})
	require.NoError(t, err)
	require.Len(t, result.Destinations, 1)
	assert.Equal(t, domain.BasisSales, result.Destinations[0].Basis)
	assert.Equal(t, int64(100), result.Destinations[0].Need)

	s, err := p.SuggestMinimumStock(context.Background(), "P1", "A", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.Suggested)
}

func TestPlanner_PlanUsesCache(t *testing.T) {
	c := &countingCache{stored: map[string]*domain.AllocationResult{}}
	p := newPlanner(seededStore(), c)
	req := domain.AllocationRequest{ProductID: "P1", DestinationBranchIDs: []string{"A"}, AsOf: asOf}

	first, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, c.hits)
	assert.Same(t, first, second)
}

func TestPlanner_InvalidateCache(t *testing.T) {
	c := &countingCache{stored: map[string]*domain.AllocationResult{}}
	p := newPlanner(seededStore(), c)

	require.NoError(t, p.InvalidateCache(context.Background(), " P1 "))
	require.NoError(t, p.InvalidateCache(context.Background(), ""))
	assert.Equal(t, []string{"P1", "*"}, c.invalidated)

	// the default cache accepts invalidation too
	assert.NoError(t, newPlanner(seededStore(), nil).InvalidateCache(context.Background(), "P1"))
}

func TestPlanner_PlanReceipt(t *testing.T) {
	p := newPlanner(seededStore(), nil)

	_, err := p.PlanReceipt(context.Background(), domain.AllocationRequest{ProductID: "P1"})
	assert.ErrorIs(t, err, drp.ErrInvalidInput)

	qty := int64(150)
	result, err := p.PlanReceipt(context.Background(), domain.AllocationRequest{
		ProductID:            "P1",
		DestinationBranchIDs: []string{"A", "B"},
		SourceQuantity:       &qty,
		AsOf:                 asOf,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModePriority, result.Mode)
	assert.Equal(t, int64(150), result.SourceAvailable)
	// B ranks first
	assert.Equal(t, int64(0), result.Destinations[0].SuggestedShipment)
	assert.Equal(t, domain.StatusDeficit, result.Destinations[0].Status)
	assert.Equal(t, int64(150), result.Destinations[1].SuggestedShipment)
}

func TestPlanner_PlanBatchIsolatesFailures(t *testing.T) {
	p := newPlanner(seededStore(), nil)

	items, err := p.PlanBatch(context.Background(), []domain.AllocationRequest{
		{ProductID: "P1", DestinationBranchIDs: []string{"A"}, AsOf: asOf},
		{ProductID: "missing", DestinationBranchIDs: []string{"A"}, AsOf: asOf},
		{ProductID: "P2", DestinationBranchIDs: []string{"C"}, AsOf: asOf},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err())
	assert.Equal(t, int64(100), items[0].Result.TotalShipped)

	assert.ErrorIs(t, items[1].Err(), repository.ErrNotFound)
	assert.NotEmpty(t, items[1].Error)
	assert.Nil(t, items[1].Result)

	assert.NoError(t, items[2].Err())
	assert.Equal(t, "P2", items[2].ProductID)
}

func TestPlanner_Profiles(t *testing.T) {
	p := newPlanner(seededStore(), nil)

	profiles, err := p.Profiles(context.Background(), "P1", []string{"A", "C"}, 0, asOf)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.InDelta(t, 10, profiles[0].DailyAverage, 1e-9)
	assert.False(t, profiles[1].HasHistory())

	_, err = p.Profiles(context.Background(), "P1", []string{"A"}, 45, asOf)
	assert.ErrorIs(t, err, drp.ErrUnsupportedWindow)
}

func TestPlanner_SuggestMinimumStock(t *testing.T) {
	p := newPlanner(seededStore(), nil)

	s, err := p.SuggestMinimumStock(context.Background(), "P1", "B", asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(300), s.Suggested)
	assert.Equal(t, domain.BasisSales, s.Basis)
}
