// Package memory provides an in-process store for tests and
// single-instance servers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/veldtmc/econledger"
	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	"github.com/veldtmc/econledger/store"
)

type Store struct {
	mu sync.RWMutex

	// Account storage
	accounts map[uuid.UUID]account.Account
	names    map[string]uuid.UUID

	// Holdings storage, keyed per owning account
	holdings map[uuid.UUID]map[account.EntryKey]account.HoldingsEntry

	closed bool
}

func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]account.Account),
		names:    make(map[string]uuid.UUID),
		holdings: make(map[uuid.UUID]map[account.EntryKey]account.HoldingsEntry),
	}
}

var _ store.Store = (*Store)(nil)

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Account store implementation

func (s *Store) CreateAccount(_ context.Context, acct account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return econledger.ErrStoreClosed
	}
	if _, exists := s.accounts[acct.Identifier()]; exists {
		return econledger.ErrDuplicateAccount
	}
	if _, exists := s.names[nameKey(acct.Name())]; exists {
		return econledger.ErrDuplicateAccount
	}

	s.accounts[acct.Identifier()] = acct
	s.names[nameKey(acct.Name())] = acct.Identifier()
	return nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acct, ok := s.accounts[id]; ok {
		return acct, nil
	}
	return nil, econledger.ErrAccountNotFound
}

func (s *Store) GetAccountByName(_ context.Context, name string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.names[nameKey(name)]; ok {
		return s.accounts[id], nil
	}
	return nil, econledger.ErrAccountNotFound
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.accounts[acct.Identifier()]
	if !exists {
		return econledger.ErrAccountNotFound
	}
	if prev.Name() != acct.Name() {
		delete(s.names, nameKey(prev.Name()))
		s.names[nameKey(acct.Name())] = acct.Identifier()
	}
	s.accounts[acct.Identifier()] = acct
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[id]
	if !exists {
		return econledger.ErrAccountNotFound
	}
	delete(s.accounts, id)
	delete(s.names, nameKey(acct.Name()))
	delete(s.holdings, id)
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		result = append(result, acct)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result, nil
}

// Holdings store implementation

func (s *Store) UpsertHolding(_ context.Context, owner uuid.UUID, entry account.HoldingsEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return econledger.ErrStoreClosed
	}
	entries, ok := s.holdings[owner]
	if !ok {
		entries = make(map[account.EntryKey]account.HoldingsEntry)
		s.holdings[owner] = entries
	}
	entries[entry.Key()] = entry
	return nil
}

func (s *Store) GetHolding(_ context.Context, owner uuid.UUID, region string, cur int64, typ currency.Type) (account.HoldingsEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.holdings[owner][account.EntryKey{Region: region, Currency: cur, Type: typ}]
	return entry, ok, nil
}

func (s *Store) TopBalances(_ context.Context, region string, cur int64, limit int) ([]store.BalanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]store.BalanceRow, 0, len(s.holdings))
	for owner, entries := range s.holdings {
		acct, ok := s.accounts[owner]
		if !ok {
			continue
		}
		row := store.BalanceRow{Account: owner, Name: acct.Name()}
		found := false
		for key, entry := range entries {
			if key.Region == region && key.Currency == cur {
				row.Amount = row.Amount.Add(entry.Amount)
				found = true
			}
		}
		if found {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Amount.Equal(rows[j].Amount) {
			return rows[i].Amount.GreaterThan(rows[j].Amount)
		}
		return rows[i].Name < rows[j].Name
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return econledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
