package holdings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
)

// Dispatch errors. Both mark configuration mistakes, not per-call faults:
// once reported for a (currency, type) pair they will repeat until the
// handler set changes.
var (
	ErrNoHandler        = errors.New("holdings: no handler for currency type")
	ErrAmbiguousHandler = errors.New("holdings: multiple handlers match currency type")
)

type cacheKey struct {
	uid int64
	typ currency.Type
}

// Registry holds the registered handlers and resolves the unique handler
// for each (currency, type) pair, caching resolutions.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	cache    map[cacheKey]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		cache:  make(map[cacheKey]Handler),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a handler and invalidates the resolution cache.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.handlers {
		if existing.Identifier() == h.Identifier() {
			return fmt.Errorf("holdings: duplicate handler registration: %s", h.Identifier())
		}
	}

	r.handlers = append(r.handlers, h)
	r.cache = make(map[cacheKey]Handler)

	r.logger.Info("holdings handler registered", "handler", h.Identifier())
	return nil
}

// Resolve returns the unique handler supporting the (currency, type) pair.
func (r *Registry) Resolve(cur *currency.Currency, typ currency.Type) (Handler, error) {
	key := cacheKey{uid: cur.UID, typ: typ}

	r.mu.RLock()
	if h, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return h, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.cache[key]; ok {
		return h, nil
	}

	var matched Handler
	for _, h := range r.handlers {
		if !h.Supports(cur, typ) {
			continue
		}
		if matched != nil {
			r.logger.Warn("ambiguous holdings handler configuration",
				"currency", cur.Identifier,
				"type", typ,
				"first", matched.Identifier(),
				"second", h.Identifier(),
			)
			return nil, fmt.Errorf("%w: %s/%s", ErrAmbiguousHandler, cur.Identifier, typ)
		}
		matched = h
	}

	if matched == nil {
		r.logger.Warn("no holdings handler configured",
			"currency", cur.Identifier,
			"type", typ,
		)
		return nil, fmt.Errorf("%w: %s/%s", ErrNoHandler, cur.Identifier, typ)
	}

	r.cache[key] = matched
	return matched, nil
}

// Get resolves the handler for the pair and reads the entry.
func (r *Registry) Get(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type) (account.HoldingsEntry, error) {
	h, err := r.Resolve(cur, typ)
	if err != nil {
		return account.HoldingsEntry{}, err
	}
	return h.Get(ctx, acct, region, cur, typ)
}

// Set resolves the handler for the pair and writes the entry.
func (r *Registry) Set(ctx context.Context, acct account.Account, region string, cur *currency.Currency, typ currency.Type, amount decimal.Decimal) error {
	h, err := r.Resolve(cur, typ)
	if err != nil {
		return err
	}
	return h.Set(ctx, acct, region, cur, typ, amount)
}
