package econledger_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtmc/econledger"
	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	"github.com/veldtmc/econledger/holdings"
	"github.com/veldtmc/econledger/hook"
	"github.com/veldtmc/econledger/store/memory"
)

func newCurrencies(t *testing.T) *currency.Registry {
	t.Helper()
	currencies := currency.NewRegistry()
	require.NoError(t, currencies.Register(&currency.Currency{
		Identifier:    "dollar",
		UID:           1,
		DecimalPlaces: 2,
		Singular:      "Dollar",
		Plural:        "Dollars",
		Symbol:        "$",
		Aliases:       []string{"usd"},
		Type:          currency.TypeVirtual,
	}))
	require.NoError(t, currencies.Register(&currency.Currency{
		Identifier:    "gem",
		UID:           2,
		DecimalPlaces: 0,
		Type:          currency.TypeVirtual,
	}))
	require.NoError(t, currencies.SetRegionDefault("mining_world", "gem"))
	return currencies
}

func newEngine(t *testing.T, opts ...econledger.Option) *econledger.Engine {
	t.Helper()
	e := econledger.New(memory.New(), newCurrencies(t), opts...)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func TestAccountLifecycle(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	playerID := uuid.New()
	acct, err := e.CreatePlayerAccount(ctx, playerID, "Steve")
	require.NoError(t, err)
	assert.True(t, acct.IsPlayer())

	// Resolvable by uuid string and by name.
	byID, err := e.FindAccount(ctx, playerID.String())
	require.NoError(t, err)
	assert.Equal(t, "Steve", byID.Name())

	byName, err := e.FindAccount(ctx, "steve")
	require.NoError(t, err)
	assert.Equal(t, playerID, byName.Identifier())

	assert.True(t, e.HasAccount(ctx, "Steve"))
	assert.False(t, e.HasAccount(ctx, "Herobrine"))

	// Duplicate id or name leaves the existing account untouched.
	_, err = e.CreatePlayerAccount(ctx, playerID, "Steve2")
	require.ErrorIs(t, err, econledger.ErrDuplicateAccount)
	_, err = e.CreatePlayerAccount(ctx, uuid.New(), "STEVE")
	require.ErrorIs(t, err, econledger.ErrDuplicateAccount)
	still, err := e.FindAccount(ctx, playerID.String())
	require.NoError(t, err)
	assert.Equal(t, "Steve", still.Name())

	require.ErrorIs(t, e.RenameAccount(ctx, playerID, "Alex"), econledger.ErrUnsupported)

	require.NoError(t, e.DeleteAccount(ctx, playerID))
	_, err = e.FindAccount(ctx, "Steve")
	assert.True(t, econledger.IsNotFound(err))
}

func TestDepositWithdrawFunnels(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	res := e.Deposit(ctx, acct, "", "dollar", decimal.RequireFromString("100.50"), "test")
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Balances, 1)
	assert.True(t, res.Balances[0].Ending.Equal(decimal.RequireFromString("100.50")))
	assert.False(t, res.ID.IsNil())

	res = e.Withdraw(ctx, acct, "", "dollar", decimal.RequireFromString("0.50"), "test")
	require.True(t, res.Success, res.Message)

	total, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)))

	ok, err := e.Has(ctx, acct, "", "dollar", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.Has(ctx, acct, "", "dollar", decimal.RequireFromString("100.01"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithdrawRejectionReportsMessage(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	res := e.Withdraw(ctx, acct, "", "dollar", decimal.NewFromInt(5), "test")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	total, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestCurrencyResolution(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	// Symbol and alias resolve to the same currency.
	res := e.Deposit(ctx, acct, "", "$", decimal.NewFromInt(10), "test")
	require.True(t, res.Success, res.Message)
	res = e.Deposit(ctx, acct, "", "USD", decimal.NewFromInt(5), "test")
	require.True(t, res.Success, res.Message)

	total, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(15)))

	// Empty identifier resolves to the region default.
	res = e.Deposit(ctx, acct, "mining_world", "", decimal.NewFromInt(3), "test")
	require.True(t, res.Success, res.Message)
	total, err = e.HoldingsTotal(ctx, acct, "mining_world", "gem")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(3)))

	// Unknown currency folds into a failed result.
	res = e.Deposit(ctx, acct, "", "doubloon", decimal.NewFromInt(1), "test")
	assert.False(t, res.Success)
}

func TestRegionsAreIndependent(t *testing.T) {
	e := newEngine(t, econledger.WithDefaultRegion("overworld"))
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	require.True(t, e.Deposit(ctx, acct, "overworld", "dollar", decimal.NewFromInt(40), "t").Success)
	require.True(t, e.Deposit(ctx, acct, "nether", "dollar", decimal.NewFromInt(2), "t").Success)

	over, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, over.Equal(decimal.NewFromInt(40)), "default region should be overworld")

	nether, err := e.HoldingsTotal(ctx, acct, "nether", "dollar")
	require.NoError(t, err)
	assert.True(t, nether.Equal(decimal.NewFromInt(2)))
}

func TestTransferFunnel(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	alice, err := e.CreatePlayerAccount(ctx, uuid.New(), "Alice")
	require.NoError(t, err)
	bob, err := e.CreatePlayerAccount(ctx, uuid.New(), "Bob")
	require.NoError(t, err)

	require.True(t, e.Deposit(ctx, alice, "", "dollar", decimal.NewFromInt(50), "t").Success)

	res := e.Transfer(ctx, alice, bob, "", "dollar", decimal.NewFromInt(30), "t")
	require.True(t, res.Success, res.Message)

	aliceTotal, err := e.HoldingsTotal(ctx, alice, "", "dollar")
	require.NoError(t, err)
	bobTotal, err := e.HoldingsTotal(ctx, bob, "", "dollar")
	require.NoError(t, err)
	assert.True(t, aliceTotal.Equal(decimal.NewFromInt(20)))
	assert.True(t, bobTotal.Equal(decimal.NewFromInt(30)))

	// Overdrawn transfer leaves both sides untouched.
	res = e.Transfer(ctx, alice, bob, "", "dollar", decimal.NewFromInt(999), "t")
	assert.False(t, res.Success)
	aliceTotal, _ = e.HoldingsTotal(ctx, alice, "", "dollar")
	bobTotal, _ = e.HoldingsTotal(ctx, bob, "", "dollar")
	assert.True(t, aliceTotal.Equal(decimal.NewFromInt(20)))
	assert.True(t, bobTotal.Equal(decimal.NewFromInt(30)))
}

func TestSetBalanceFunnel(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)
	require.True(t, e.Deposit(ctx, acct, "", "dollar", decimal.NewFromInt(100), "t").Success)

	res := e.SetBalance(ctx, acct, "", "dollar", decimal.RequireFromString("7.77"), "admin")
	require.True(t, res.Success, res.Message)

	total, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("7.77")))
}

func TestHalfUpRoundingThroughEngine(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	res := e.Deposit(ctx, acct, "", "dollar", decimal.RequireFromString("10.005"), "t")
	require.True(t, res.Success, res.Message)

	total, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("10.01")),
		"10.005 at 2dp should round half-up to 10.01, got %s", total)
}

func TestSharedAccountOperations(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	owner := uuid.New()
	member := uuid.New()
	stranger := uuid.New()

	town, err := e.CreateSharedAccount(ctx, "towny:spawn", owner)
	require.NoError(t, err)

	assert.True(t, e.IsAccountOwner(town, owner))
	assert.False(t, e.IsAccountOwner(town, member))
	assert.True(t, e.HasAccountPermission(town, owner, account.PermWithdraw),
		"owner short-circuits every permission check")

	assert.True(t, e.AddAccountMember(ctx, town, member, account.PermBalance))
	assert.True(t, e.IsAccountMember(town, member))
	assert.True(t, e.HasAccountPermission(town, member, account.PermBalance))
	assert.False(t, e.HasAccountPermission(town, member, account.PermWithdraw))

	assert.True(t, e.SetAccountPermission(ctx, town, member, account.PermWithdraw, true))
	assert.True(t, e.HasAccountPermission(town, member, account.PermWithdraw))

	// Grants to non-members fail without side effects.
	assert.False(t, e.SetAccountPermission(ctx, town, stranger, account.PermWithdraw, true))
	assert.False(t, e.HasAccountPermission(town, stranger, account.PermWithdraw))

	// Membership changes survive a store round trip.
	reloaded, err := e.FindAccount(ctx, "towny:spawn")
	require.NoError(t, err)
	assert.True(t, e.HasAccountPermission(reloaded, member, account.PermWithdraw))

	assert.True(t, e.TransferAccountOwnership(ctx, town, member))
	assert.True(t, e.IsAccountOwner(town, member))
	assert.False(t, e.IsAccountMember(town, owner), "previous owner loses all access")

	assert.False(t, e.RemoveAccountMember(ctx, town, member),
		"removing the owner through member removal must fail")
}

func TestSharedOpsOnNonSharedAccount(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)
	user := uuid.New()

	assert.False(t, e.IsAccountOwner(acct, user))
	assert.False(t, e.IsAccountMember(acct, user))
	assert.False(t, e.HasAccountPermission(acct, user, account.PermBalance))
	assert.False(t, e.AddAccountMember(ctx, acct, user))
	assert.False(t, e.RemoveAccountMember(ctx, acct, user))
	assert.False(t, e.TransferAccountOwnership(ctx, acct, user))
}

func TestMirroredCurrencyThroughEngine(t *testing.T) {
	s := memory.New()
	currencies := newCurrencies(t)
	require.NoError(t, currencies.Register(&currency.Currency{
		Identifier:    "xp",
		UID:           9,
		DecimalPlaces: 0,
		Type:          currency.TypeMirrored,
	}))

	live := &stubLive{values: map[uuid.UUID]decimal.Decimal{}, reachable: true}
	e := econledger.New(s, currencies,
		econledger.WithHandler(holdings.NewMirroredHandler(s, live)),
	)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)
	live.values[acct.Identifier()] = decimal.NewFromInt(42)

	// Live value wins while reachable.
	total, err := e.HoldingsTotal(ctx, acct, "", "xp")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(42)))

	// Unreachable live state falls back to the cached value.
	live.reachable = false
	total, err = e.HoldingsTotal(ctx, acct, "", "xp")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(42)))

	// Writes still succeed cache-only.
	res := e.Deposit(ctx, acct, "", "xp", decimal.NewFromInt(8), "quest")
	require.True(t, res.Success, res.Message)
	total, err = e.HoldingsTotal(ctx, acct, "", "xp")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(50)))
}

type stubLive struct {
	mu        sync.Mutex
	values    map[uuid.UUID]decimal.Decimal
	reachable bool
}

func (l *stubLive) ReadLive(_ context.Context, acct account.Account) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.reachable {
		return decimal.Zero, false
	}
	v, ok := l.values[acct.Identifier()]
	return v, ok
}

func (l *stubLive) WriteLive(_ context.Context, acct account.Account, amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.reachable {
		return false
	}
	l.values[acct.Identifier()] = amount
	return true
}

func TestHooksAndReceiptHistory(t *testing.T) {
	rec := hook.NewRecorder(0)
	e := newEngine(t, econledger.WithHook(rec))
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	require.True(t, e.Deposit(ctx, acct, "", "dollar", decimal.NewFromInt(10), "t").Success)
	require.False(t, e.Withdraw(ctx, acct, "", "dollar", decimal.NewFromInt(99), "t").Success)

	history := rec.History(acct.Identifier())
	require.Len(t, history, 1, "only successful transactions attribute to accounts")
	assert.Equal(t, "give", history[0].Result.Kind)

	all := rec.All()
	require.Len(t, all, 2)
	assert.False(t, all[0].Result.Success, "newest first: the failed take")
}

func TestDuplicateHookOptionIsRejectedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	first := hook.NewRecorder(0)
	second := hook.NewRecorder(0)
	e := newEngine(t,
		econledger.WithLogger(logger),
		econledger.WithHook(first),
		econledger.WithHook(second),
	)
	ctx := context.Background()

	assert.Equal(t, 1, e.Hooks().Count())
	assert.Contains(t, buf.String(), "engine option rejected")

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)
	require.True(t, e.Deposit(ctx, acct, "", "dollar", decimal.NewFromInt(5), "t").Success)

	assert.Len(t, first.All(), 1, "the first recorder observes events")
	assert.Empty(t, second.All(), "the rejected recorder observes nothing")
}

func TestTopBalances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	e := newEngine(t, econledger.WithTopCache(client, time.Minute))
	ctx := context.Background()

	for _, row := range []struct {
		name   string
		amount int64
	}{
		{"Alice", 100},
		{"Bob", 400},
		{"Carol", 250},
	} {
		acct, err := e.CreatePlayerAccount(ctx, uuid.New(), row.name)
		require.NoError(t, err)
		require.True(t, e.Deposit(ctx, acct, "", "dollar", decimal.NewFromInt(row.amount), "t").Success)
	}

	rows, err := e.TopBalances(ctx, "", "dollar", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[0].Name)
	assert.Equal(t, "Carol", rows[1].Name)

	// Second read is served from the cache.
	rows, err = e.TopBalances(ctx, "", "dollar", 2)
	require.NoError(t, err)
	assert.Equal(t, "Bob", rows[0].Name)
}

func TestConcurrentFunnelsSerializePerTuple(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	acct, err := e.CreatePlayerAccount(ctx, uuid.New(), "Steve")
	require.NoError(t, err)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				res := e.Deposit(ctx, acct, "", "dollar", decimal.NewFromInt(1), "t")
				if !res.Success {
					t.Error(res.Message)
					return
				}
			}
		}()
	}
	wg.Wait()

	total, err := e.HoldingsTotal(ctx, acct, "", "dollar")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(workers*perWorker)),
		"no deposit may be lost, got %s", total)
}
