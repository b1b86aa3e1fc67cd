package domain

import "strings"

// Basis explains where a branch's target level came from.
type Basis string

const (
	BasisSales           Basis = "sales"
	BasisMinimumStock    Basis = "minimum_stock"
	BasisSubstituteGroup Basis = "substitute_group"
	BasisNoHistory       Basis = "no_history"
)

// AllocationStatus is the per-branch outcome of a planning run.
type AllocationStatus string

const (
	StatusOK        AllocationStatus = "ok"
	StatusRationed  AllocationStatus = "rateio"
	StatusDeficit   AllocationStatus = "deficit"
	StatusNoHistory AllocationStatus = "no_history"
)

// Confidence grades how stable a branch's demand is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AllocationMode selects the rationing policy used when supply is short.
type AllocationMode string

const (
	// ModeProportional splits the source in proportion to need (product-driven planning).
	ModeProportional AllocationMode = "proportional"
	// ModePriority serves branches in a fixed order (inbound receipt planning).
	ModePriority AllocationMode = "priority"
)

var statusLabels = map[AllocationStatus]string{
	StatusOK:        "OK",
	StatusRationed:  "Rateio",
	StatusDeficit:   "Déficit",
	StatusNoHistory: "Sem dados",
}

var allocationModes = map[string]AllocationMode{
	"proportional": ModeProportional,
	"rateio":       ModeProportional,
	"priority":     ModePriority,
	"nf":           ModePriority,
}

// StatusLabel returns a human-readable label for an allocation status.
func StatusLabel(status AllocationStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}

	return string(status)
}

// ParseAllocationMode returns the mode for a given name (case-insensitive).
// An empty name maps to proportional.
func ParseAllocationMode(name string) (AllocationMode, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ModeProportional, true
	}
	mode, ok := allocationModes[name]

	return mode, ok
}
