package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry errors.
var (
	ErrDuplicate      = errors.New("currency: duplicate identifier or uid")
	ErrUnknown        = errors.New("currency: unknown currency")
	ErrNoDefault      = errors.New("currency: no default currency configured")
	ErrReservedLookup = errors.New("currency: empty lookup key")
)

// Registry holds the set of known currencies and resolves lookups.
//
// Lookup is case-insensitive over the canonical identifier, the symbol,
// and any aliases. Absent currencies resolve to a false ok value, never
// a fault; only configuration mistakes (duplicate registration, missing
// default) surface as errors.
type Registry struct {
	mu             sync.RWMutex
	byKey          map[string]*Currency // lowercased identifier/symbol/alias
	byUID          map[int64]*Currency
	defaultIdent   string
	regionDefaults map[string]string // region -> identifier
}

// NewRegistry creates an empty currency registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:          make(map[string]*Currency),
		byUID:          make(map[int64]*Currency),
		regionDefaults: make(map[string]string),
	}
}

// Register adds a currency. The first registered currency becomes the
// default until SetDefault overrides it.
func (r *Registry) Register(c *Currency) error {
	if c.Identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrDuplicate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.lookupKeys(c)
	for _, k := range keys {
		if existing, ok := r.byKey[k]; ok && existing.Identifier != c.Identifier {
			return fmt.Errorf("%w: key %q already registered to %q", ErrDuplicate, k, existing.Identifier)
		}
	}
	if existing, ok := r.byUID[c.UID]; ok && existing.Identifier != c.Identifier {
		return fmt.Errorf("%w: uid %d already registered to %q", ErrDuplicate, c.UID, existing.Identifier)
	}

	for _, k := range keys {
		r.byKey[k] = c
	}
	r.byUID[c.UID] = c

	if r.defaultIdent == "" {
		r.defaultIdent = c.Identifier
	}
	return nil
}

// Find resolves a currency by identifier, symbol, or alias, case-insensitively.
func (r *Registry) Find(identifierOrSymbol string) (*Currency, bool) {
	if identifierOrSymbol == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byKey[strings.ToLower(identifierOrSymbol)]
	return c, ok
}

// FindUID resolves a currency by its numeric UID.
func (r *Registry) FindUID(uid int64) (*Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUID[uid]
	return c, ok
}

// SetDefault designates the global default currency.
func (r *Registry) SetDefault(identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byKey[strings.ToLower(identifier)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, identifier)
	}
	r.defaultIdent = c.Identifier
	return nil
}

// SetRegionDefault designates the default currency for one region.
func (r *Registry) SetRegionDefault(region, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byKey[strings.ToLower(identifier)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, identifier)
	}
	r.regionDefaults[region] = c.Identifier
	return nil
}

// Default returns the global default currency.
func (r *Registry) Default() (*Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultIdent == "" {
		return nil, ErrNoDefault
	}
	return r.byKey[strings.ToLower(r.defaultIdent)], nil
}

// DefaultFor returns the default currency for a region, falling back to
// the global default when the region defines none.
func (r *Registry) DefaultFor(region string) (*Currency, error) {
	r.mu.RLock()
	ident, ok := r.regionDefaults[region]
	r.mu.RUnlock()

	if ok {
		if c, found := r.Find(ident); found {
			return c, nil
		}
	}
	return r.Default()
}

// List returns the sorted set of canonical currency identifiers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.byUID))
	idents := make([]string, 0, len(r.byUID))
	for _, c := range r.byUID {
		if _, dup := seen[c.Identifier]; !dup {
			seen[c.Identifier] = struct{}{}
			idents = append(idents, c.Identifier)
		}
	}
	sort.Strings(idents)
	return idents
}

// lookupKeys returns every lowercased key a currency resolves under.
func (r *Registry) lookupKeys(c *Currency) []string {
	keys := []string{strings.ToLower(c.Identifier)}
	if c.Symbol != "" {
		keys = append(keys, strings.ToLower(c.Symbol))
	}
	for _, a := range c.Aliases {
		if a != "" {
			keys = append(keys, strings.ToLower(a))
		}
	}
	return keys
}
