package hook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/id"
	"github.com/veldtmc/econledger/transaction"
)

// countingHook counts account events and can be told to fail or stall.
type countingHook struct {
	name  string
	fail  bool
	stall time.Duration

	mu      sync.Mutex
	created int
	deleted int
}

func (h *countingHook) Name() string { return h.name }

func (h *countingHook) OnAccountCreated(_ context.Context, _ account.Account) error {
	if h.stall > 0 {
		time.Sleep(h.stall)
	}
	h.mu.Lock()
	h.created++
	h.mu.Unlock()
	if h.fail {
		return errors.New("hook failure")
	}
	return nil
}

func (h *countingHook) OnAccountDeleted(_ context.Context, _ account.Account) error {
	h.mu.Lock()
	h.deleted++
	h.mu.Unlock()
	return nil
}

func (h *countingHook) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created, h.deleted
}

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	h := &countingHook{name: "counter"}
	if err := r.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
	if r.Get("counter") != Hook(h) {
		t.Error("Get should return the registered hook")
	}
	if r.Get("absent") != nil {
		t.Error("Get on unknown name should return nil")
	}

	acct := account.NewPlayerAccount(uuid.New(), "Steve")
	r.EmitAccountCreated(context.Background(), acct)
	r.EmitAccountDeleted(context.Background(), acct)

	created, deleted := h.counts()
	if created != 1 || deleted != 1 {
		t.Errorf("counts = %d, %d; want 1, 1", created, deleted)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&countingHook{name: "dup"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&countingHook{name: "dup"}); err == nil {
		t.Error("second registration under the same name must fail")
	}
}

func TestFailingHookDoesNotStopDispatch(t *testing.T) {
	r := NewRegistry()
	bad := &countingHook{name: "bad", fail: true}
	good := &countingHook{name: "good"}
	if err := r.Register(bad); err != nil {
		t.Fatalf("Register bad: %v", err)
	}
	if err := r.Register(good); err != nil {
		t.Fatalf("Register good: %v", err)
	}

	r.EmitAccountCreated(context.Background(), account.NewPlayerAccount(uuid.New(), "Steve"))

	if created, _ := good.counts(); created != 1 {
		t.Errorf("good hook created = %d, want 1", created)
	}
}

func TestCanceledContextSkipsSlowHook(t *testing.T) {
	r := NewRegistry()
	slow := &countingHook{name: "slow", stall: time.Minute}
	if err := r.Register(slow); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	r.EmitAccountCreated(ctx, account.NewPlayerAccount(uuid.New(), "Steve"))
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("emission took %s despite canceled context", elapsed)
	}
}

func successResult(accounts ...uuid.UUID) *transaction.Result {
	result := &transaction.Result{
		ID:      id.NewTransactionID(),
		Kind:    "give",
		Success: true,
		Time:    time.Now().UTC(),
	}
	for _, a := range accounts {
		result.Balances = append(result.Balances, transaction.LegBalance{
			Account:  a,
			Region:   "overworld",
			Currency: 1,
			Ending:   decimal.NewFromInt(10),
		})
	}
	return result
}

func TestRecorderHistory(t *testing.T) {
	rec := NewRecorder(0)
	alice := uuid.New()
	bob := uuid.New()
	ctx := context.Background()

	if err := rec.OnTransactionProcessed(ctx, successResult(alice)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.OnTransactionProcessed(ctx, successResult(alice, bob)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.OnTransactionFailed(ctx, transaction.FailedResult("take", "test", "insufficient funds")); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	if got := len(rec.History(alice)); got != 2 {
		t.Errorf("alice history = %d, want 2", got)
	}
	if got := len(rec.History(bob)); got != 1 {
		t.Errorf("bob history = %d, want 1", got)
	}
	if got := len(rec.History(uuid.New())); got != 0 {
		t.Errorf("stranger history = %d, want 0", got)
	}

	all := rec.All()
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}
	// Newest first: the failure was recorded last.
	if all[0].Result.Success {
		t.Error("all[0] should be the failed result")
	}

	// Receipts carry their own minted identity.
	if all[0].ID.Prefix() != id.PrefixReceipt {
		t.Errorf("receipt prefix = %q, want %q", all[0].ID.Prefix(), id.PrefixReceipt)
	}
}

func TestRecorderEviction(t *testing.T) {
	rec := NewRecorder(2)
	alice := uuid.New()
	ctx := context.Background()

	for range 3 {
		if err := rec.OnTransactionProcessed(ctx, successResult(alice)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if got := len(rec.All()); got != 2 {
		t.Errorf("retained = %d, want 2", got)
	}
	if got := len(rec.History(alice)); got != 2 {
		t.Errorf("alice history = %d, want 2", got)
	}
}

func TestRecorderAsRegistryHook(t *testing.T) {
	r := NewRegistry()
	rec := NewRecorder(0)
	if err := r.Register(rec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	alice := uuid.New()
	r.EmitTransactionProcessed(context.Background(), successResult(alice))
	r.EmitTransactionFailed(context.Background(), transaction.FailedResult("pay", "test", "unknown currency"))

	if got := len(rec.All()); got != 2 {
		t.Errorf("all = %d, want 2", got)
	}
	if got := len(rec.History(alice)); got != 1 {
		t.Errorf("alice history = %d, want 1", got)
	}
}
