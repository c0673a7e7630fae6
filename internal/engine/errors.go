package engine

import (
	"errors"

	"poolLedger/internal/oracle"
	"poolLedger/internal/store"
)

// Sentinel errors classifying handler failures. Recoverable conditions are
// logged and skipped; unexpected ones indicate a malformed event.
var (
	ErrMissingPosition = errors.New("position not found")
	ErrMalformed       = errors.New("malformed event")
)

// Recoverable reports whether an error is an expected degraded condition
// (missing position, price, or record) rather than a malformed event.
func Recoverable(err error) bool {
	return errors.Is(err, ErrMissingPosition) ||
		errors.Is(err, oracle.ErrNoPrice) ||
		errors.Is(err, store.ErrNotFound)
}
