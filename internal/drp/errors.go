package drp

import "errors"

var (
	// ErrInvalidInput is returned when collaborator data or a request is malformed
	// (negative stock or sales, unknown mode, empty destination list...).
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedWindow is returned for a lookback window outside domain.SupportedWindows.
	ErrUnsupportedWindow = errors.New("unsupported window")

	// ErrInvariant is returned when a computed allocation breaks conservation or
	// need bounds. It signals a bug in the engine, never bad input.
	ErrInvariant = errors.New("allocation invariant violated")
)
