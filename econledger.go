package econledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/baltop"
	"github.com/veldtmc/econledger/currency"
	"github.com/veldtmc/econledger/holdings"
	"github.com/veldtmc/econledger/hook"
	"github.com/veldtmc/econledger/store"
	"github.com/veldtmc/econledger/transaction"
)

// DefaultRegion is used when callers pass an empty region and no
// override is configured.
const DefaultRegion = "global"

// Engine is the economy engine: accounts, holdings, and transactions
// over one store, one currency registry, and a set of holdings handlers.
type Engine struct {
	store      store.Store
	currencies *currency.Registry
	handlers   *holdings.Registry
	hooks      *hook.Registry
	locks      *transaction.LockTable
	logger     *slog.Logger

	defaultRegion string
	top           *baltop.Board
	topOpts       []baltop.Option
	initErrs      []error
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.hooks.WithLogger(logger)
		e.handlers.WithLogger(logger)
	}
}

// WithHandler registers an additional holdings handler, typically a
// MirroredHandler for a live-counter currency.
func WithHandler(h holdings.Handler) Option {
	return func(e *Engine) {
		if err := e.handlers.Register(h); err != nil {
			e.initErrs = append(e.initErrs, err)
		}
	}
}

// WithHook registers an event hook.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) {
		if err := e.hooks.Register(h); err != nil {
			e.initErrs = append(e.initErrs, err)
		}
	}
}

// WithDefaultRegion sets the region used when callers pass "".
func WithDefaultRegion(region string) Option {
	return func(e *Engine) {
		if region != "" {
			e.defaultRegion = region
		}
	}
}

// WithTopCache fronts top-balance queries with a Redis cache.
func WithTopCache(client *redis.Client, ttl time.Duration) Option {
	return func(e *Engine) {
		e.topOpts = append(e.topOpts, baltop.WithCache(client, ttl))
	}
}

// New creates an engine over the given store and currency registry. A
// handler for virtual balances is always present; mirrored currencies
// need their handler supplied via WithHandler.
func New(s store.Store, currencies *currency.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		currencies:    currencies,
		handlers:      holdings.NewRegistry(),
		hooks:         hook.NewRegistry(),
		locks:         transaction.NewLockTable(),
		logger:        slog.Default(),
		defaultRegion: DefaultRegion,
	}
	_ = e.handlers.Register(holdings.NewVirtualHandler(s)) //nolint:errcheck // fresh registry, cannot collide

	for _, opt := range opts {
		opt(e)
	}
	// Report after all options ran so the warnings reach the
	// configured logger rather than the default one.
	for _, err := range e.initErrs {
		e.logger.Warn("engine option rejected", "error", err)
	}
	e.initErrs = nil

	e.top = baltop.New(s, append(e.topOpts, baltop.WithLogger(e.logger))...)
	return e
}

// Start migrates the store and verifies connectivity.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("econledger: migrate: %w", err)
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("econledger: %w: %v", ErrStoreNotReady, err)
	}

	e.logger.Info("economy engine started",
		"default_region", e.defaultRegion,
		"currencies", e.currencies.List(),
		"hooks", e.hooks.Count(),
	)
	return nil
}

// Stop closes the store.
func (e *Engine) Stop() error {
	e.logger.Info("economy engine stopped")
	return e.store.Close()
}

// Currencies returns the engine's currency registry.
func (e *Engine) Currencies() *currency.Registry { return e.currencies }

// Hooks returns the engine's hook registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// region substitutes the default region for an empty one.
func (e *Engine) region(r string) string {
	if r == "" {
		return e.defaultRegion
	}
	return r
}

// resolveCurrency maps a currency identifier to its registration. An
// empty identifier resolves to the region's default.
func (e *Engine) resolveCurrency(region, identifier string) (*currency.Currency, error) {
	if identifier == "" {
		cur, err := e.currencies.DefaultFor(region)
		if err != nil {
			return nil, fmt.Errorf("%w: no default for region %q", ErrCurrencyNotFound, region)
		}
		return cur, nil
	}
	cur, ok := e.currencies.Find(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCurrencyNotFound, identifier)
	}
	return cur, nil
}

// ==================== Accounts ====================

// CreateAccount persists a pre-built account.
func (e *Engine) CreateAccount(ctx context.Context, acct account.Account) error {
	if acct == nil || acct.Name() == "" {
		return fmt.Errorf("econledger: account requires a name")
	}
	if err := e.store.CreateAccount(ctx, acct); err != nil {
		return err
	}

	e.hooks.EmitAccountCreated(ctx, acct)
	e.logger.Debug("account created",
		"id", acct.Identifier(),
		"name", acct.Name(),
		"player", acct.IsPlayer(),
	)
	return nil
}

// CreatePlayerAccount creates and persists a player account.
func (e *Engine) CreatePlayerAccount(ctx context.Context, id uuid.UUID, name string) (*account.PlayerAccount, error) {
	acct := account.NewPlayerAccount(id, name)
	if err := e.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// CreateNonPlayerAccount creates and persists a non-player account, as
// used by integrations holding funds outside any player.
func (e *Engine) CreateNonPlayerAccount(ctx context.Context, name string) (*account.NonPlayerAccount, error) {
	acct := account.NewNonPlayerAccount(uuid.New(), name)
	if err := e.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// CreateSharedAccount creates and persists a shared account under the
// given owner.
func (e *Engine) CreateSharedAccount(ctx context.Context, name string, owner uuid.UUID) (*account.SharedAccount, error) {
	acct := account.NewSharedAccount(uuid.New(), name, owner)
	if err := e.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// FindAccount resolves an account by uuid string or by name.
func (e *Engine) FindAccount(ctx context.Context, idOrName string) (account.Account, error) {
	if id, err := uuid.Parse(idOrName); err == nil {
		return e.store.GetAccount(ctx, id)
	}
	return e.store.GetAccountByName(ctx, idOrName)
}

// HasAccount reports whether an account resolves by uuid string or name.
func (e *Engine) HasAccount(ctx context.Context, idOrName string) bool {
	_, err := e.FindAccount(ctx, idOrName)
	return err == nil
}

// ListAccounts returns every stored account.
func (e *Engine) ListAccounts(ctx context.Context) ([]account.Account, error) {
	return e.store.ListAccounts(ctx)
}

// DeleteAccount removes the account and its holdings.
func (e *Engine) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	acct, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteAccount(ctx, id); err != nil {
		return err
	}

	e.hooks.EmitAccountDeleted(ctx, acct)
	e.logger.Debug("account deleted", "id", id, "name", acct.Name())
	return nil
}

// RenameAccount is not supported; account names are stable identifiers
// for the integrations built on them.
func (e *Engine) RenameAccount(_ context.Context, _ uuid.UUID, _ string) error {
	return ErrUnsupported
}

// ==================== Holdings ====================

// HoldingsTotal returns the account's combined balance for the pair,
// refreshed through the currency's handler. The read takes the same
// tuple lock transactions take, so it observes pre- or post-transaction
// state only.
func (e *Engine) HoldingsTotal(ctx context.Context, acct account.Account, region, identifier string) (decimal.Decimal, error) {
	region = e.region(region)
	cur, err := e.resolveCurrency(region, identifier)
	if err != nil {
		return decimal.Zero, err
	}

	unlock := e.locks.Lock(transaction.Key{
		Account:  acct.Identifier(),
		Region:   region,
		Currency: cur.UID,
	})
	defer unlock()

	if _, err := e.handlers.Get(ctx, acct, region, cur, cur.Type); err != nil {
		return decimal.Zero, err
	}
	return acct.Wallet().Total(region, cur.UID), nil
}

// Has reports whether the account holds at least amount of the currency.
func (e *Engine) Has(ctx context.Context, acct account.Account, region, identifier string, amount decimal.Decimal) (bool, error) {
	total, err := e.HoldingsTotal(ctx, acct, region, identifier)
	if err != nil {
		return false, err
	}
	return total.GreaterThanOrEqual(amount), nil
}

// TopBalances returns the ranked balance listing for the pair.
func (e *Engine) TopBalances(ctx context.Context, region, identifier string, limit int) ([]store.BalanceRow, error) {
	region = e.region(region)
	cur, err := e.resolveCurrency(region, identifier)
	if err != nil {
		return nil, err
	}
	return e.top.Top(ctx, region, cur.UID, limit)
}

// ==================== Shared accounts ====================

// shared narrows an account to its shared form. All shared-account
// operations answer false for non-shared accounts.
func shared(acct account.Account) (*account.SharedAccount, bool) {
	s, ok := acct.(*account.SharedAccount)
	return s, ok
}

// IsAccountOwner reports whether user owns the shared account.
func (e *Engine) IsAccountOwner(acct account.Account, user uuid.UUID) bool {
	s, ok := shared(acct)
	return ok && s.IsOwner(user)
}

// IsAccountMember reports whether user is the owner or a member of the
// shared account.
func (e *Engine) IsAccountMember(acct account.Account, user uuid.UUID) bool {
	s, ok := shared(acct)
	return ok && s.IsMember(user)
}

// HasAccountPermission reports whether user holds the permission on the
// shared account. The owner holds every permission.
func (e *Engine) HasAccountPermission(acct account.Account, user uuid.UUID, perm account.Permission) bool {
	s, ok := shared(acct)
	return ok && s.HasPermission(user, perm)
}

// AddAccountMember adds user to the shared account with the given
// initial grants and persists the change.
func (e *Engine) AddAccountMember(ctx context.Context, acct account.Account, user uuid.UUID, initial ...account.Permission) bool {
	s, ok := shared(acct)
	if !ok {
		return false
	}
	s.AddMember(user, initial...)
	return e.persistShared(ctx, s, "add member")
}

// RemoveAccountMember removes user from the shared account and persists
// the change.
func (e *Engine) RemoveAccountMember(ctx context.Context, acct account.Account, user uuid.UUID) bool {
	s, ok := shared(acct)
	if !ok || !s.RemoveMember(user) {
		return false
	}
	return e.persistShared(ctx, s, "remove member")
}

// SetAccountPermission grants or revokes one permission for a member
// and persists the change. The target must already be a member.
func (e *Engine) SetAccountPermission(ctx context.Context, acct account.Account, user uuid.UUID, perm account.Permission, value bool) bool {
	s, ok := shared(acct)
	if !ok || !s.SetPermission(user, perm, value) {
		return false
	}
	return e.persistShared(ctx, s, "set permission")
}

// TransferAccountOwnership makes newOwner the shared account's owner
// and persists the change. The previous owner loses all access.
func (e *Engine) TransferAccountOwnership(ctx context.Context, acct account.Account, newOwner uuid.UUID) bool {
	s, ok := shared(acct)
	if !ok {
		return false
	}
	s.TransferOwnership(newOwner)
	return e.persistShared(ctx, s, "transfer ownership")
}

func (e *Engine) persistShared(ctx context.Context, s *account.SharedAccount, op string) bool {
	s.Entity().Touch()
	if err := e.store.UpdateAccount(ctx, s); err != nil {
		e.logger.Warn("shared account update failed",
			"op", op,
			"account", s.Identifier(),
			"error", err,
		)
		return false
	}
	return true
}

// ==================== Transactions ====================

// NewTransaction starts a fluent transaction of the given kind against
// the engine's collaborators.
func (e *Engine) NewTransaction(kind string) *transaction.Transaction {
	return transaction.New(kind, transaction.Deps{
		Currencies: e.currencies,
		Handlers:   e.handlers,
		Locks:      e.locks,
		Logger:     e.logger,
	})
}

// run processes a built transaction, folds any error into a failed
// result, and notifies hooks either way.
func (e *Engine) run(ctx context.Context, txn *transaction.Transaction, kind, source string) *transaction.Result {
	result, err := txn.Process(ctx)
	if err != nil {
		result = transaction.FailedResult(kind, source, err.Error())
		e.hooks.EmitTransactionFailed(ctx, result)
		return result
	}
	e.hooks.EmitTransactionProcessed(ctx, result)
	return result
}

func (e *Engine) failed(ctx context.Context, kind, source string, err error) *transaction.Result {
	result := transaction.FailedResult(kind, source, err.Error())
	e.hooks.EmitTransactionFailed(ctx, result)
	return result
}

// Deposit adds amount of the currency to the account.
func (e *Engine) Deposit(ctx context.Context, acct account.Account, region, identifier string, amount decimal.Decimal, source string) *transaction.Result {
	region = e.region(region)
	cur, err := e.resolveCurrency(region, identifier)
	if err != nil {
		return e.failed(ctx, "give", source, err)
	}

	mod := transaction.NewModifier(region, cur.UID, amount)
	return e.run(ctx, e.NewTransaction("give").To(acct, mod).Source(source), "give", source)
}

// Withdraw removes amount of the currency from the account. It is a
// deposit through the countered modifier, one path for both directions.
func (e *Engine) Withdraw(ctx context.Context, acct account.Account, region, identifier string, amount decimal.Decimal, source string) *transaction.Result {
	region = e.region(region)
	cur, err := e.resolveCurrency(region, identifier)
	if err != nil {
		return e.failed(ctx, "take", source, err)
	}

	mod := transaction.NewModifier(region, cur.UID, amount)
	return e.run(ctx, e.NewTransaction("take").To(acct, mod.Counter()).Source(source), "take", source)
}

// Transfer moves amount of the currency from one account to another,
// atomically across both legs.
func (e *Engine) Transfer(ctx context.Context, from, to account.Account, region, identifier string, amount decimal.Decimal, source string) *transaction.Result {
	region = e.region(region)
	cur, err := e.resolveCurrency(region, identifier)
	if err != nil {
		return e.failed(ctx, "pay", source, err)
	}

	mod := transaction.NewModifier(region, cur.UID, amount)
	txn := e.NewTransaction("pay").
		To(from, mod.Counter()).
		To(to, mod).
		Source(source)
	return e.run(ctx, txn, "pay", source)
}

// SetBalance sets the account's balance to an absolute amount.
func (e *Engine) SetBalance(ctx context.Context, acct account.Account, region, identifier string, amount decimal.Decimal, source string) *transaction.Result {
	region = e.region(region)
	cur, err := e.resolveCurrency(region, identifier)
	if err != nil {
		return e.failed(ctx, "set", source, err)
	}

	mod := transaction.NewSetModifier(region, cur.UID, amount)
	return e.run(ctx, e.NewTransaction("set").To(acct, mod).Source(source), "set", source)
}
