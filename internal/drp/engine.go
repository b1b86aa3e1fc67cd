package drp

import (
	"fmt"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
)

// Engine plans one product's distribution from a source to its destinations.
// It performs no I/O; callers fetch a Snapshot first.
type Engine struct {
	// PriorityBranches ranks destinations in priority mode.
	PriorityBranches []string
	// Now closes the lookback window when a request carries no AsOf.
	Now func() time.Time
}

// Snapshot is everything the engine reads for one request.
type Snapshot struct {
	Request     domain.AllocationRequest
	Product     domain.Product
	SourceStock int64
	// Destinations must follow Request.DestinationBranchIDs.
	Destinations      []DestinationSnapshot
	SourceSubstitutes []SourceSubstitute
}

// DestinationSnapshot is one destination branch's sales, stock and substitute
// group members.
type DestinationSnapshot struct {
	BranchID string
	Sales    []domain.SalesObservation
	Stock    domain.BranchStockState
	Members  []MemberSnapshot
}

// MemberSnapshot is a substitute group member at a destination branch.
type MemberSnapshot struct {
	ProductID string
	Sales     []domain.SalesObservation
	Stock     int64
}

// NewEngine returns an engine ranking priority-mode destinations by branches.
func NewEngine(priorityBranches []string) *Engine {
	return &Engine{PriorityBranches: priorityBranches, Now: time.Now}
}

// Plan computes target levels, needs and shipments for every destination.
func (e *Engine) Plan(snap Snapshot) (*domain.AllocationResult, error) {
	req := snap.Request
	mode, multiple, err := e.validate(snap)
	if err != nil {
		return nil, err
	}

	source := snap.SourceStock
	if req.SourceQuantity != nil {
		source = *req.SourceQuantity
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = e.now()
	}

	lines := make([]domain.DestinationResult, len(snap.Destinations))
	needs := make([]int64, len(snap.Destinations))
	branchIDs := make([]string, len(snap.Destinations))
	for i, dest := range snap.Destinations {
		line, err := planDestination(req.ProductID, dest, req.WindowDays, req.Policy, asOf)
		if err != nil {
			return nil, err
		}
		lines[i] = line
		needs[i] = line.Need
		branchIDs[i] = dest.BranchID
	}

	order := priorityOrder(branchIDs, e.PriorityBranches)
	shipments := ration(mode, needs, order, source)
	shipments = ApplySaleMultiple(mode, shipments, needs, order, source, multiple)

	totalNeed := sumPositive(needs)
	short := source < totalNeed

	result := &domain.AllocationResult{
		ProductID:       req.ProductID,
		SourceBranchID:  req.SourceBranchID,
		Mode:            mode,
		SaleMultiple:    multiple,
		SourceAvailable: source,
		TotalNeed:       totalNeed,
		Destinations:    lines,
		ComputedAt:      e.now().UTC(),
	}

	for i := range lines {
		lines[i].SuggestedShipment = shipments[i]
		result.TotalShipped += shipments[i]
		if lines[i].Basis == domain.BasisNoHistory {
			lines[i].Status = domain.StatusNoHistory
			continue
		}
		lines[i].Status = allocationStatus(mode, lines[i].Need, shipments[i], multiple, short)
	}
	if short {
		result.TotalDeficit = totalNeed - source
	}
	result.Unallocated = source - result.TotalShipped

	if err := checkInvariants(result); err != nil {
		return nil, err
	}

	result.DeficitSuggestions = []domain.DeficitSuggestion{}
	if hasShortfall(lines) {
		result.DeficitSuggestions = BuildDeficitSuggestions(req.ProductID, snap.SourceSubstitutes)
	}

	return result, nil
}

func planDestination(productID string, dest DestinationSnapshot, window int, policy domain.Policy, asOf time.Time) (domain.DestinationResult, error) {
	if dest.Stock.CurrentStock < 0 || dest.Stock.MinimumStock < 0 {
		return domain.DestinationResult{}, fmt.Errorf("%w: negative stock for %s@%s", ErrInvalidInput, productID, dest.BranchID)
	}

	own, err := Profile(productID, dest.BranchID, dest.Sales, window, asOf)
	if err != nil {
		return domain.DestinationResult{}, err
	}

	var members []MemberProfile
	if !own.HasHistory() {
		members = make([]MemberProfile, 0, len(dest.Members))
		for _, m := range dest.Members {
			if m.ProductID == productID {
				continue
			}
			if m.Stock < 0 {
				return domain.DestinationResult{}, fmt.Errorf("%w: negative stock for %s@%s", ErrInvalidInput, m.ProductID, dest.BranchID)
			}
			mp, err := Profile(m.ProductID, dest.BranchID, m.Sales, window, asOf)
			if err != nil {
				return domain.DestinationResult{}, err
			}
			members = append(members, MemberProfile{ProductID: m.ProductID, Profile: mp, Stock: m.Stock})
		}
	}

	res, err := ResolveDemand(own, members)
	if err != nil {
		return domain.DestinationResult{}, fmt.Errorf("resolve %s@%s: %w", productID, dest.BranchID, err)
	}

	target, basis := TargetLevel(res, dest.Stock.MinimumStock, policy)

	line := domain.DestinationResult{
		BranchID:     dest.BranchID,
		CurrentStock: dest.Stock.CurrentStock,
		MinimumStock: dest.Stock.MinimumStock,
		TargetLevel:  target,
		Basis:        basis,
		Confidence:   domain.ConfidenceLow,
	}
	// group stock only covers demand the group itself generated
	if basis == domain.BasisSubstituteGroup {
		line.GroupStock = res.GroupStock
	}
	if p := res.Profile; p != nil {
		line.Confidence = p.Confidence
		line.HasPeak = p.HasPeak
		line.DailyAverage = p.DailyAverage
		line.AdjustedDailyAverage = p.AdjustedDailyAverage
	}

	if need := target - (line.CurrentStock + line.GroupStock); need > 0 {
		line.Need = need
	}
	return line, nil
}

func (e *Engine) validate(snap Snapshot) (domain.AllocationMode, int64, error) {
	req := snap.Request
	if req.ProductID == "" {
		return "", 0, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
	}
	if len(req.DestinationBranchIDs) == 0 {
		return "", 0, fmt.Errorf("%w: at least one destination branch is required", ErrInvalidInput)
	}
	if !domain.IsSupportedWindow(req.WindowDays) {
		return "", 0, fmt.Errorf("%w: %d days", ErrUnsupportedWindow, req.WindowDays)
	}
	if req.Policy.LeadTimeDays < 0 || req.Policy.SafetyDays < 0 {
		return "", 0, fmt.Errorf("%w: policy days must not be negative", ErrInvalidInput)
	}

	mode, ok := domain.ParseAllocationMode(string(req.Mode))
	if !ok {
		return "", 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, req.Mode)
	}

	seen := make(map[string]struct{}, len(req.DestinationBranchIDs))
	for _, id := range req.DestinationBranchIDs {
		if id == "" {
			return "", 0, fmt.Errorf("%w: empty destination branch id", ErrInvalidInput)
		}
		if id == req.SourceBranchID {
			return "", 0, fmt.Errorf("%w: source branch %s is also a destination", ErrInvalidInput, id)
		}
		if _, dup := seen[id]; dup {
			return "", 0, fmt.Errorf("%w: duplicate destination branch %s", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	if len(snap.Destinations) != len(req.DestinationBranchIDs) {
		return "", 0, fmt.Errorf("%w: snapshot has %d destinations, request %d", ErrInvalidInput, len(snap.Destinations), len(req.DestinationBranchIDs))
	}
	for i, d := range snap.Destinations {
		if d.BranchID != req.DestinationBranchIDs[i] {
			return "", 0, fmt.Errorf("%w: snapshot destination %d is %s, want %s", ErrInvalidInput, i, d.BranchID, req.DestinationBranchIDs[i])
		}
	}

	if snap.SourceStock < 0 {
		return "", 0, fmt.Errorf("%w: negative source stock", ErrInvalidInput)
	}
	if req.SourceQuantity != nil && *req.SourceQuantity < 0 {
		return "", 0, fmt.Errorf("%w: negative source quantity", ErrInvalidInput)
	}

	multiple, err := ResolveSaleMultiple(req.SaleMultiple, snap.Product.SaleMultiple)
	if err != nil {
		return "", 0, err
	}
	return mode, multiple, nil
}

// ResolveSaleMultiple picks the request's multiple, then the product's, then 1.
func ResolveSaleMultiple(requested, configured int64) (int64, error) {
	switch {
	case requested < 0:
		return 0, fmt.Errorf("%w: sale_multiple must be >= 1", ErrInvalidInput)
	case requested > 0:
		return requested, nil
	case configured > 0:
		return configured, nil
	default:
		return 1, nil
	}
}

func checkInvariants(r *domain.AllocationResult) error {
	if r.TotalShipped > r.SourceAvailable {
		return fmt.Errorf("%w: shipped %d exceeds source %d", ErrInvariant, r.TotalShipped, r.SourceAvailable)
	}
	for _, d := range r.Destinations {
		if d.SuggestedShipment < 0 || d.SuggestedShipment > d.Need {
			return fmt.Errorf("%w: branch %s shipment %d outside [0, %d]", ErrInvariant, d.BranchID, d.SuggestedShipment, d.Need)
		}
	}
	var want int64
	if r.TotalNeed > r.SourceAvailable {
		want = r.TotalNeed - r.SourceAvailable
	}
	if r.TotalDeficit != want {
		return fmt.Errorf("%w: deficit %d, want %d", ErrInvariant, r.TotalDeficit, want)
	}
	return nil
}

// hasShortfall reports whether any branch was left rationed or in deficit
func hasShortfall(lines []domain.DestinationResult) bool {
	for _, l := range lines {
		if l.Status == domain.StatusDeficit || l.Status == domain.StatusRationed {
			return true
		}
	}
	return false
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
