package domain

import "errors"

var (
	// ErrNotFound marks a lookup for a price or record that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownVenue marks a price update for an exchange outside the
	// configured set.
	ErrUnknownVenue = errors.New("unknown exchange")

	// ErrBalanceQuery wraps a failed free-balance query. Fatal in live mode,
	// degraded to zero capacity in dry-run.
	ErrBalanceQuery = errors.New("balance query failed")
)
