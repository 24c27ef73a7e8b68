package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/transaction"
)

// callTimeout bounds how long a single hook invocation may run.
const callTimeout = 5 * time.Second

// Registry manages registered hooks and dispatches events to them.
// Interface lists are cached at registration time so emission does no
// type assertions.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger

	// Type-cached hook lists for dispatch
	onAccountCreated       []OnAccountCreated
	onAccountDeleted       []OnAccountDeleted
	onTransactionProcessed []OnTransactionProcessed
	onTransactionFailed    []OnTransactionFailed
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Register adds a hook and caches the event interfaces it implements.
func (r *Registry) Register(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hooks {
		if existing.Name() == h.Name() {
			return fmt.Errorf("hook: duplicate registration: %s", h.Name())
		}
	}

	r.hooks = append(r.hooks, h)

	var interfaces []string
	if v, ok := h.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
		interfaces = append(interfaces, "OnAccountCreated")
	}
	if v, ok := h.(OnAccountDeleted); ok {
		r.onAccountDeleted = append(r.onAccountDeleted, v)
		interfaces = append(interfaces, "OnAccountDeleted")
	}
	if v, ok := h.(OnTransactionProcessed); ok {
		r.onTransactionProcessed = append(r.onTransactionProcessed, v)
		interfaces = append(interfaces, "OnTransactionProcessed")
	}
	if v, ok := h.(OnTransactionFailed); ok {
		r.onTransactionFailed = append(r.onTransactionFailed, v)
		interfaces = append(interfaces, "OnTransactionFailed")
	}

	r.logger.Info("hook registered",
		"name", h.Name(),
		"interfaces", interfaces,
	)
	return nil
}

// Get returns a hook by name, or nil.
func (r *Registry) Get(name string) Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hooks {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// Count returns the number of registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// EmitAccountCreated notifies hooks of a new account.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct account.Account) {
	r.mu.RLock()
	hooks := r.onAccountCreated
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnAccountCreated(ctx, acct)
		}); err != nil {
			r.logger.Warn("hook OnAccountCreated failed",
				"hook", h.Name(),
				"account", acct.Identifier(),
				"error", err,
			)
		}
	}
}

// EmitAccountDeleted notifies hooks of a deleted account.
func (r *Registry) EmitAccountDeleted(ctx context.Context, acct account.Account) {
	r.mu.RLock()
	hooks := r.onAccountDeleted
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnAccountDeleted(ctx, acct)
		}); err != nil {
			r.logger.Warn("hook OnAccountDeleted failed",
				"hook", h.Name(),
				"account", acct.Identifier(),
				"error", err,
			)
		}
	}
}

// EmitTransactionProcessed notifies hooks of a successful transaction.
func (r *Registry) EmitTransactionProcessed(ctx context.Context, result *transaction.Result) {
	r.mu.RLock()
	hooks := r.onTransactionProcessed
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnTransactionProcessed(ctx, result)
		}); err != nil {
			r.logger.Warn("hook OnTransactionProcessed failed",
				"hook", h.Name(),
				"transaction", result.ID,
				"error", err,
			)
		}
	}
}

// EmitTransactionFailed notifies hooks of a rejected or failed
// transaction.
func (r *Registry) EmitTransactionFailed(ctx context.Context, result *transaction.Result) {
	r.mu.RLock()
	hooks := r.onTransactionFailed
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnTransactionFailed(ctx, result)
		}); err != nil {
			r.logger.Warn("hook OnTransactionFailed failed",
				"hook", h.Name(),
				"kind", result.Kind,
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a hook function with a timeout. Hooks must
// never block the transaction pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, hookName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(callTimeout):
		return fmt.Errorf("hook timeout: %s", hookName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
