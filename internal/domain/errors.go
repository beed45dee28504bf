package domain

import "errors"

// Sentinel errors shared by the analytical engines. Statistical engines surface
// these to the caller; decision engines (rebalancing, sizing) prefer explicit
// no-action results over errors, since absence of a trade is a valid outcome.
var (
	// ErrInsufficientData indicates fewer samples than the component-specific
	// minimum (10 for beta/CVaR, 2 for a correlation pair).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientPositions indicates a portfolio operation that needs at
	// least 2 positions was invoked with fewer.
	ErrInsufficientPositions = errors.New("insufficient positions")

	// ErrNotFound indicates a referenced portfolio or position is absent from
	// the store. Propagated as-is from the collaborator.
	ErrNotFound = errors.New("not found")
)
