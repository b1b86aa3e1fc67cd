package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
)

type stockKey struct {
	productID string
	branchID  string
}

// Store is an in-memory ledger used by tests and CSV-backed CLI runs
type Store struct {
	mu          sync.RWMutex
	products    map[string]domain.Product
	branches    []domain.Branch
	sales       map[stockKey][]domain.SalesObservation
	stock       map[stockKey]domain.BranchStockState
	groups      map[string][]string
	suggestions []domain.MinimumStockSuggestion
}

// NewStore creates an empty in-memory ledger
func NewStore() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		sales:    make(map[stockKey][]domain.SalesObservation),
		stock:    make(map[stockKey]domain.BranchStockState),
		groups:   make(map[string][]string),
	}
}

// Verify interface compliance
var (
	_ repository.Ledger           = (*Store)(nil)
	_ repository.SuggestionWriter = (*Store)(nil)
	_ repository.BulkStockReader  = (*Store)(nil)
)

// AddProduct registers or replaces a product
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddBranch registers a branch
func (s *Store) AddBranch(b domain.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches = append(s.branches, b)
}

// AddSales appends sales observations for a product
func (s *Store) AddSales(productID string, observations ...domain.SalesObservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obs := range observations {
		key := stockKey{productID, obs.BranchID}
		s.sales[key] = append(s.sales[key], obs)
	}
}

// SetStock records the stock state of a product at a branch
func (s *Store) SetStock(state domain.BranchStockState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{state.ProductID, state.BranchID}] = state
}

// SetSubstituteGroup makes the given products interchangeable. A product
// already in another group is moved.
func (s *Store) SetSubstituteGroup(productIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := append([]string(nil), productIDs...)
	for _, id := range members {
		if old, ok := s.groups[id]; ok {
			for _, o := range old {
				s.groups[o] = without(s.groups[o], id)
			}
		}
	}
	for _, id := range members {
		s.groups[id] = members
	}
}

func (s *Store) GetSales(ctx context.Context, productID, branchID string, windowDays int, asOf time.Time) ([]domain.SalesObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -(windowDays - 1))

	var out []domain.SalesObservation
	for _, obs := range s.sales[stockKey{productID, branchID}] {
		day := time.Date(obs.Date.Year(), obs.Date.Month(), obs.Date.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(start) || day.After(end) {
			continue
		}
		out = append(out, obs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) GetStock(ctx context.Context, productID, branchID string) (domain.BranchStockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state, ok := s.stock[stockKey{productID, branchID}]; ok {
		return state, nil
	}
	return domain.BranchStockState{BranchID: branchID, ProductID: productID}, nil
}

func (s *Store) GetStocks(ctx context.Context, productID string, branchIDs []string) (map[string]domain.BranchStockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.BranchStockState, len(branchIDs))
	for _, id := range branchIDs {
		if state, ok := s.stock[stockKey{productID, id}]; ok {
			out[id] = state
		}
	}
	return out, nil
}

func (s *Store) GetSubstituteGroup(ctx context.Context, productID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.groups[productID]
	if len(members) < 2 {
		return nil, nil
	}
	return append([]string(nil), members...), nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, repository.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.Branch(nil), s.branches...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *Store) SaveMinimumStockSuggestions(ctx context.Context, suggestions []domain.MinimumStockSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = append(s.suggestions, suggestions...)
	return nil
}

// Suggestions returns every suggestion saved so far
func (s *Store) Suggestions() []domain.MinimumStockSuggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MinimumStockSuggestion(nil), s.suggestions...)
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
