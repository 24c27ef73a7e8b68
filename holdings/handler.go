// Package holdings provides the pluggable balance read/write strategies and
// the registry that dispatches to them per currency type.
package holdings

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
)

// Handler is one strategy for reading and writing a balance. A handler
// declares which (currency, type) pairs it serves via Supports; dispatch
// selects the unique matching handler.
type Handler interface {
	// Identifier names this handler for diagnostics and duplicate checks.
	Identifier() string

	// Supports reports whether this handler serves the (currency, type) pair.
	Supports(cur *currency.Currency, typ currency.Type) bool

	// Get reads the holdings entry for one tuple. A missing entry resolves
	// to a zero-amount entry, never an error.
	Get(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type) (account.HoldingsEntry, error)

	// Set writes the holdings entry for one tuple. The amount is expected
	// to already be rescaled to the currency's decimal places.
	Set(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type, amount decimal.Decimal) error
}

// LiveCounter is the contract a live external representation (for example a
// connected actor's in-memory counter) implements for mirrored currencies.
type LiveCounter interface {
	// ReadLive returns the live value and whether the account's live
	// representation was reachable.
	ReadLive(ctx context.Context, acct account.Account) (decimal.Decimal, bool)

	// WriteLive pushes a value into the live representation, reporting
	// success. Unreachable accounts report false.
	WriteLive(ctx context.Context, acct account.Account, amount decimal.Decimal) bool
}
