// Package store defines the persistence contract for accounts and holdings.
//
// The engine defines required operations, not a layout: implementations are
// free to choose their own document or table shapes. Currencies are
// configuration and are not persisted here.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
)

// BalanceRow is one row of a top-balance query: an account and its combined
// balance for one (region, currency) pair across all currency types.
type BalanceRow struct {
	Account uuid.UUID       `json:"account"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
}

// Store is the unified storage interface for accounts and their holdings.
type Store interface {
	// Account methods. CreateAccount fails when the id or name is already
	// taken; lookups fail with the engine's not-found sentinel.
	CreateAccount(ctx context.Context, acct account.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error)
	GetAccountByName(ctx context.Context, name string) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	ListAccounts(ctx context.Context) ([]account.Account, error)

	// Holdings methods. UpsertHolding replaces the entry under the entry's
	// own (region, currency, type) key for the owning account.
	UpsertHolding(ctx context.Context, owner uuid.UUID, entry account.HoldingsEntry) error
	GetHolding(ctx context.Context, owner uuid.UUID, region string, cur int64, typ currency.Type) (account.HoldingsEntry, bool, error)

	// TopBalances returns up to limit accounts ordered by descending
	// combined balance for the (region, currency) pair. A non-positive
	// limit returns every account holding the currency in the region.
	TopBalances(ctx context.Context, region string, cur int64, limit int) ([]BalanceRow, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
