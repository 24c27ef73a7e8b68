package holdings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	"github.com/veldtmc/econledger/store"
)

// MirroredHandler backs balances mirrored into a live external counter.
//
// While the account's live representation is reachable the live value is
// the source of truth and reads write it back into the wallet as a cache.
// When unreachable (offline actor, non-player account) the wallet's last
// cached entry is authoritative. Writes always update the cache and push
// to the live representation on a best-effort basis.
type MirroredHandler struct {
	store  store.Store
	live   LiveCounter
	logger *slog.Logger
}

// NewMirroredHandler creates a handler for mirrored balances backed by the
// given live counter.
func NewMirroredHandler(s store.Store, live LiveCounter) *MirroredHandler {
	return &MirroredHandler{store: s, live: live, logger: slog.Default()}
}

// WithLogger sets the logger for the handler.
func (h *MirroredHandler) WithLogger(logger *slog.Logger) *MirroredHandler {
	h.logger = logger
	return h
}

// Identifier names this handler.
func (h *MirroredHandler) Identifier() string { return "mirrored" }

// Supports matches every mirrored-type pair regardless of currency.
func (h *MirroredHandler) Supports(_ *currency.Currency, typ currency.Type) bool {
	return typ == currency.TypeMirrored
}

// Get reads the live value when reachable, refreshing the cache; otherwise
// it returns the cached entry, defaulting to zero.
func (h *MirroredHandler) Get(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type) (account.HoldingsEntry, error) {
	if live, ok := h.live.ReadLive(ctx, acct); ok {
		entry := account.HoldingsEntry{
			Region:   region,
			Currency: cur.UID,
			Amount:   cur.Round(live),
			Type:     typ,
		}
		h.cache(ctx, acct, entry)
		return entry, nil
	}

	if entry, ok := acct.Wallet().Get(region, cur.UID, typ); ok {
		return entry, nil
	}

	entry, ok, err := h.store.GetHolding(ctx, acct.Identifier(), region, cur.UID, typ)
	if err != nil {
		return account.HoldingsEntry{}, fmt.Errorf("holdings: load mirrored %s for %s: %w", cur.Identifier, acct.Identifier(), err)
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

// Set updates the cache and, when reachable, the live representation. The
// write succeeds even when the live representation is unreachable.
func (h *MirroredHandler) Set(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type, amount decimal.Decimal) error {
	entry := account.HoldingsEntry{
		Region:   region,
		Currency: cur.UID,
		Amount:   amount,
		Type:     typ,
	}
	// Persist before updating the cache so a store failure leaves the
	// in-memory state untouched.
	if err := h.store.UpsertHolding(ctx, acct.Identifier(), entry); err != nil {
		return fmt.Errorf("holdings: persist mirrored %s for %s: %w", cur.Identifier, acct.Identifier(), err)
	}
	acct.Wallet().Set(entry)

	if !h.live.WriteLive(ctx, acct, amount) {
		h.logger.Debug("live counter unreachable, cache-only write",
			"account", acct.Identifier(),
			"currency", cur.Identifier,
		)
	}
	return nil
}

// cache writes a refreshed live value back into the wallet and store.
func (h *MirroredHandler) cache(ctx context.Context, acct account.Account, entry account.HoldingsEntry) {
	acct.Wallet().Set(entry)
	if err := h.store.UpsertHolding(ctx, acct.Identifier(), entry); err != nil {
		h.logger.Warn("failed to persist mirrored cache entry",
			"account", acct.Identifier(),
			"error", err,
		)
	}
}
