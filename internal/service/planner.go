package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/cache"
	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/drp"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 4

// PlannerConfig carries the defaults applied to incomplete requests
type PlannerConfig struct {
	Policy       domain.Policy
	WindowDays   int
	SourceBranch string
	Concurrency  int
}

// Planner fetches ledger data for a request and runs the DRP engine on it
type Planner struct {
	ledger repository.Ledger
	engine *drp.Engine
	cache  cache.PlanCache
	cfg    PlannerConfig
}

// BatchItem is the outcome of one request of a batch
type BatchItem struct {
	ProductID string                   `json:"product_id"`
	Result    *domain.AllocationResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
	err       error
}

// Err returns the planning error of the item, if any
func (b BatchItem) Err() error {
	return b.err
}

func NewPlanner(ledger repository.Ledger, engine *drp.Engine, cacheImpl cache.PlanCache, cfg PlannerConfig) *Planner {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopPlanCache()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultBatchConcurrency
	}
	return &Planner{ledger: ledger, engine: engine, cache: cacheImpl, cfg: cfg}
}

// Plan computes the product-driven distribution of a request
func (s *Planner) Plan(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	req, err := s.withDefaults(ctx, req)
	if err != nil {
		return nil, err
	}

	if result, ok, err := s.cache.Get(ctx, req); err == nil && ok {
		return result, nil
	} else if err != nil {
		log.Warn().Err(err).Str("product_id", req.ProductID).Msg("drp: cache get plan failed")
	}

	snap, err := s.Snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Plan(snap)
	if err != nil {
		if errors.Is(err, drp.ErrInvariant) {
			log.Error().Err(err).Str("product_id", req.ProductID).Msg("drp: allocation invariant violated")
		}
		return nil, err
	}

	log.Debug().
		Str("product_id", req.ProductID).
		Str("source_branch_id", req.SourceBranchID).
		Str("mode", string(result.Mode)).
		Int64("source_available", result.SourceAvailable).
		Int64("total_need", result.TotalNeed).
		Int64("total_shipped", result.TotalShipped).
		Msg("drp: plan computed")

	if err := s.cache.Set(ctx, req, result); err != nil {
		log.Warn().Err(err).Str("product_id", req.ProductID).Msg("drp: cache set plan failed")
	}

	return result, nil
}

// InvalidateCache drops the cached plans of productID, or every cached plan
// when productID is empty. Call it after the ledger changed underneath.
func (s *Planner) InvalidateCache(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return s.cache.InvalidateAll(ctx)
	}
	return s.cache.InvalidateProduct(ctx, productID)
}

// PlanReceipt distributes an inbound receipt quantity in priority order
func (s *Planner) PlanReceipt(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	if req.SourceQuantity == nil {
		return nil, fmt.Errorf("%w: receipt quantity is required", drp.ErrInvalidInput)
	}
	req.Mode = domain.ModePriority
	return s.Plan(ctx, req)
}

// PlanBatch plans many products in parallel. A failing product is reported in
// its item and does not stop the others.
func (s *Planner) PlanBatch(ctx context.Context, reqs []domain.AllocationRequest) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := s.Plan(gctx, req)
			items[i] = BatchItem{ProductID: req.ProductID, Result: result, err: err}
			if err != nil {
				items[i].Error = err.Error()
				log.Warn().Err(err).Str("product_id", req.ProductID).Msg("drp: batch item failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Profiles returns the demand profile of a product at each branch
func (s *Planner) Profiles(ctx context.Context, productID string, branchIDs []string, windowDays int, asOf time.Time) ([]*domain.DemandProfile, error) {
	if windowDays == 0 {
		windowDays = s.cfg.WindowDays
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	if len(branchIDs) == 0 {
		branches, err := s.ledger.ListBranches(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range branches {
			branchIDs = append(branchIDs, b.ID)
		}
	}

	if _, err := s.ledger.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	profiles := make([]*domain.DemandProfile, 0, len(branchIDs))
	for _, branchID := range branchIDs {
		sales, err := s.ledger.GetSales(ctx, productID, branchID, windowDays, asOf)
		if err != nil {
			return nil, err
		}
		p, err := drp.Profile(productID, branchID, sales, windowDays, asOf)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// SuggestMinimumStock profiles one product at one branch and turns its sales
// target into a suggested minimum stock
func (s *Planner) SuggestMinimumStock(ctx context.Context, productID, branchID string, asOf time.Time) (domain.MinimumStockSuggestion, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	sales, err := s.ledger.GetSales(ctx, productID, branchID, s.cfg.WindowDays, asOf)
	if err != nil {
		return domain.MinimumStockSuggestion{}, err
	}
	p, err := drp.Profile(productID, branchID, sales, s.cfg.WindowDays, asOf)
	if err != nil {
		return domain.MinimumStockSuggestion{}, err
	}
	return drp.SuggestMinimumStock(p, s.cfg.Policy, s.now().UTC()), nil
}

// Snapshot reads everything the engine needs for req
func (s *Planner) Snapshot(ctx context.Context, req domain.AllocationRequest) (drp.Snapshot, error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}

	product, err := s.ledger.GetProduct(ctx, req.ProductID)
	if err != nil {
		return drp.Snapshot{}, err
	}

	snap := drp.Snapshot{Request: req, Product: product}

	if req.SourceQuantity == nil {
		source, err := s.ledger.GetStock(ctx, req.ProductID, req.SourceBranchID)
		if err != nil {
			return drp.Snapshot{}, err
		}
		snap.SourceStock = source.CurrentStock
	}

	group, err := s.ledger.GetSubstituteGroup(ctx, req.ProductID)
	if err != nil {
		return drp.Snapshot{}, err
	}
	members := make([]string, 0, len(group))
	for _, id := range group {
		if id != req.ProductID {
			members = append(members, id)
		}
	}

	stocks, err := s.destinationStocks(ctx, req.ProductID, req.DestinationBranchIDs)
	if err != nil {
		return drp.Snapshot{}, err
	}

	snap.Destinations = make([]drp.DestinationSnapshot, len(req.DestinationBranchIDs))
	for i, branchID := range req.DestinationBranchIDs {
		sales, err := s.ledger.GetSales(ctx, req.ProductID, branchID, req.WindowDays, asOf)
		if err != nil {
			return drp.Snapshot{}, err
		}

		dest := drp.DestinationSnapshot{BranchID: branchID, Sales: sales, Stock: stocks[branchID]}
		if !hasSales(sales) && len(members) > 0 {
			if dest.Members, err = s.memberSnapshots(ctx, members, branchID, req.WindowDays, asOf); err != nil {
				return drp.Snapshot{}, err
			}
		}
		snap.Destinations[i] = dest
	}

	for _, id := range members {
		p, err := s.ledger.GetProduct(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("product_id", req.ProductID).Str("substitute_id", id).Msg("drp: substitute not in catalog")
			continue
		}
		if err != nil {
			return drp.Snapshot{}, err
		}
		st, err := s.ledger.GetStock(ctx, id, req.SourceBranchID)
		if err != nil {
			return drp.Snapshot{}, err
		}
		snap.SourceSubstitutes = append(snap.SourceSubstitutes, drp.SourceSubstitute{Product: p, Stock: st.CurrentStock})
	}

	return snap, nil
}

func (s *Planner) destinationStocks(ctx context.Context, productID string, branchIDs []string) (map[string]domain.BranchStockState, error) {
	out := make(map[string]domain.BranchStockState, len(branchIDs))
	if bulk, ok := s.ledger.(repository.BulkStockReader); ok {
		found, err := bulk.GetStocks(ctx, productID, branchIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range branchIDs {
			st, ok := found[id]
			if !ok {
				st = domain.BranchStockState{BranchID: id, ProductID: productID}
			}
			out[id] = st
		}
		return out, nil
	}

	for _, id := range branchIDs {
		st, err := s.ledger.GetStock(ctx, productID, id)
		if err != nil {
			return nil, err
		}
		out[id] = st
	}
	return out, nil
}

func (s *Planner) memberSnapshots(ctx context.Context, members []string, branchID string, windowDays int, asOf time.Time) ([]drp.MemberSnapshot, error) {
	out := make([]drp.MemberSnapshot, 0, len(members))
	for _, id := range members {
		sales, err := s.ledger.GetSales(ctx, id, branchID, windowDays, asOf)
		if err != nil {
			return nil, err
		}
		st, err := s.ledger.GetStock(ctx, id, branchID)
		if err != nil {
			return nil, err
		}
		out = append(out, drp.MemberSnapshot{ProductID: id, Sales: sales, Stock: st.CurrentStock})
	}
	return out, nil
}

// now is the planner clock; it follows the engine's so the snapshot and the
// engine agree on the as-of date
func (s *Planner) now() time.Time {
	if s.engine != nil && s.engine.Now != nil {
		return s.engine.Now()
	}
	return time.Now()
}

func (s *Planner) withDefaults(ctx context.Context, req domain.AllocationRequest) (domain.AllocationRequest, error) {
	if req.AsOf.IsZero() {
		req.AsOf = s.now()
	}
	if req.WindowDays == 0 {
		req.WindowDays = s.cfg.WindowDays
	}
	if req.Policy == (domain.Policy{}) {
		req.Policy = s.cfg.Policy
	}
	if req.SourceBranchID == "" {
		req.SourceBranchID = s.cfg.SourceBranch
	}
	if req.SourceBranchID == "" {
		return req, fmt.Errorf("%w: source_branch_id is required", drp.ErrInvalidInput)
	}

	if len(req.DestinationBranchIDs) == 0 {
		branches, err := s.ledger.ListBranches(ctx)
		if err != nil {
			return req, err
		}
		for _, b := range branches {
			if b.ID != req.SourceBranchID {
				req.DestinationBranchIDs = append(req.DestinationBranchIDs, b.ID)
			}
		}
	}
	return req, nil
}

func hasSales(sales []domain.SalesObservation) bool {
	for _, obs := range sales {
		if obs.Quantity != 0 {
			return true
		}
	}
	return false
}
