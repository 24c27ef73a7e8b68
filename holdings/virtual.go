package holdings

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	"github.com/veldtmc/econledger/store"
)

// VirtualHandler backs standard stored balances: the wallet is the source
// of truth and every write goes through the store.
type VirtualHandler struct {
	store store.Store
}

// NewVirtualHandler creates the default handler for virtual balances.
func NewVirtualHandler(s store.Store) *VirtualHandler {
	return &VirtualHandler{store: s}
}

// Identifier names this handler.
func (h *VirtualHandler) Identifier() string { return "virtual" }

// Supports matches every virtual-type pair regardless of currency.
func (h *VirtualHandler) Supports(_ *currency.Currency, typ currency.Type) bool {
	return typ == currency.TypeVirtual
}

// Get returns the wallet entry. A wallet miss falls back to the store
// and caches what it finds; an entry absent from both defaults to zero.
func (h *VirtualHandler) Get(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type) (account.HoldingsEntry, error) {
	if entry, ok := acct.Wallet().Get(region, cur.UID, typ); ok {
		return entry, nil
	}

	entry, ok, err := h.store.GetHolding(ctx, acct.Identifier(), region, cur.UID, typ)
	if err != nil {
		return account.HoldingsEntry{}, fmt.Errorf("holdings: load %s/%s for %s: %w", cur.Identifier, typ, acct.Identifier(), err)
	}
	if ok {
		acct.Wallet().Set(entry)
		return entry, nil
	}
	return account.HoldingsEntry{
		Region:   region,
		Currency: cur.UID,
		Amount:   decimal.Zero,
		Type:     typ,
	}, nil
}

// Set writes the entry into the wallet and persists it.
func (h *VirtualHandler) Set(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type, amount decimal.Decimal) error {
	entry := account.HoldingsEntry{
		Region:   region,
		Currency: cur.UID,
		Amount:   amount,
		Type:     typ,
	}
	// Persist before updating the wallet so a store failure leaves the
	// in-memory state untouched.
	if err := h.store.UpsertHolding(ctx, acct.Identifier(), entry); err != nil {
		return fmt.Errorf("holdings: persist %s/%s for %s: %w", cur.Identifier, typ, acct.Identifier(), err)
	}
	acct.Wallet().Set(entry)
	return nil
}
