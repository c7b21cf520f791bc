package posting

import "errors"

// Failure taxonomy. Callers match with errors.Is; implementations join the
// sentinel with the underlying cause.
var (
	// ErrFetch marks network, timeout, or non-2xx failures on a page fetch.
	ErrFetch = errors.New("fetch failure")
	// ErrParse marks a page or row that cannot be mapped to postings.
	ErrParse = errors.New("parse failure")
	// ErrDateParse marks a malformed DD/MM/YYYY value.
	ErrDateParse = errors.New("date parse failure")
	// ErrStore marks a snapshot or tracking persistence failure.
	ErrStore = errors.New("store failure")
	// ErrChannel marks a failed mail or push delivery.
	ErrChannel = errors.New("channel failure")
	// ErrUnknownCategory is returned for categories with no configured source.
	ErrUnknownCategory = errors.New("unknown category")
)
