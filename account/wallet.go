package account

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/currency"
)

// EntryKey identifies one holdings entry within a wallet.
type EntryKey struct {
	Region   string
	Currency int64
	Type     currency.Type
}

// HoldingsEntry is a single balance value for one (region, currency, type)
// tuple. Amounts are stored already rescaled to the owning currency's
// decimal places.
type HoldingsEntry struct {
	Region   string          `json:"region"`
	Currency int64           `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Type     currency.Type   `json:"type"`
}

// Key returns the wallet key for this entry.
func (e HoldingsEntry) Key() EntryKey {
	return EntryKey{Region: e.Region, Currency: e.Currency, Type: e.Type}
}

// Wallet is the per-account collection of holdings entries. At most one
// live entry exists per (region, currency, type) key; Set replaces.
//
// The wallet's own lock protects map access only. Cross-entry atomicity
// during transactions is provided by the engine's tuple locks.
type Wallet struct {
	mu      sync.RWMutex
	entries map[EntryKey]HoldingsEntry
}

// NewWallet creates an empty wallet.
func NewWallet() *Wallet {
	return &Wallet{entries: make(map[EntryKey]HoldingsEntry)}
}

// Get returns the entry for one (region, currency, type) tuple.
func (w *Wallet) Get(region string, cur int64, typ currency.Type) (HoldingsEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, ok := w.entries[EntryKey{Region: region, Currency: cur, Type: typ}]
	return e, ok
}

// Set stores an entry, replacing any previous entry under the same key.
func (w *Wallet) Set(entry HoldingsEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[entry.Key()] = entry
}

// Delete removes the entry under a key, reporting whether one existed.
func (w *Wallet) Delete(key EntryKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.entries[key]
	delete(w.entries, key)
	return ok
}

// Total sums every currency-type entry for a (region, currency) pair.
// Missing entries count as zero.
func (w *Wallet) Total(region string, cur int64) decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()

	total := decimal.Zero
	for key, e := range w.entries {
		if key.Region == region && key.Currency == cur {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// Entries returns a copy of every entry in the wallet.
func (w *Wallet) Entries() []HoldingsEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]HoldingsEntry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e)
	}
	return out
}
