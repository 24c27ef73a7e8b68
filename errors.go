package econledger

import (
	"errors"

	"github.com/veldtmc/econledger/holdings"
	"github.com/veldtmc/econledger/transaction"
)

// Sentinel errors for common failure scenarios.
var (
	// Account errors
	ErrAccountNotFound  = errors.New("econledger: account not found")
	ErrDuplicateAccount = errors.New("econledger: account id or name already exists")
	ErrNotShared        = errors.New("econledger: account is not a shared account")

	// Currency errors
	ErrCurrencyNotFound = errors.New("econledger: currency not found")

	// Operation errors
	ErrUnsupported = errors.New("econledger: operation not supported")

	// Store errors
	ErrStoreNotReady = errors.New("econledger: store not ready")
	ErrStoreClosed   = errors.New("econledger: store is closed")
)

// Aliases into the subpackages that own the error, so callers can classify
// everything through this package.
var (
	ErrInvalidTransaction = transaction.ErrInvalid
	ErrNoHandler          = holdings.ErrNoHandler
	ErrAmbiguousHandler   = holdings.ErrAmbiguousHandler
)

// IsNotFound reports whether the error is an absent-entity lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrCurrencyNotFound)
}

// IsInvalidTransaction reports whether the error is a transaction-processing
// failure (floor violation, unknown currency, unresolvable target, handler
// dispatch ambiguity).
func IsInvalidTransaction(err error) bool {
	return errors.Is(err, transaction.ErrInvalid)
}

// IsConfigError reports whether the error is a handler-dispatch
// configuration problem rather than a per-call fault.
func IsConfigError(err error) bool {
	return errors.Is(err, holdings.ErrNoHandler) ||
		errors.Is(err, holdings.ErrAmbiguousHandler)
}
