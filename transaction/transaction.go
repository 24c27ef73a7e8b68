package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	"github.com/veldtmc/econledger/holdings"
	"github.com/veldtmc/econledger/id"
)

// Leg is one (account, modifier) pair within a transaction.
type Leg struct {
	Account  account.Account
	Modifier Modifier
}

// LegBalance reports the post-transaction combined ending balance for one
// touched leg.
type LegBalance struct {
	Account  uuid.UUID       `json:"account"`
	Region   string          `json:"region"`
	Currency int64           `json:"currency"`
	Ending   decimal.Decimal `json:"ending"`
}

// Result is the outcome of processing one transaction.
type Result struct {
	ID       id.ID        `json:"id"`
	Kind     string       `json:"kind"`
	Source   string       `json:"source"`
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Balances []LegBalance `json:"balances"`
	Time     time.Time    `json:"time"`
}

// FailedResult builds a failure result carrying the rejection message.
func FailedResult(kind, source, message string) *Result {
	return &Result{
		ID:      id.NewTransactionID(),
		Kind:    kind,
		Source:  source,
		Success: false,
		Message: message,
		Time:    time.Now().UTC(),
	}
}

// Deps are the collaborators a transaction processes against. The engine
// fills these; tests may wire them directly.
type Deps struct {
	Currencies *currency.Registry
	Handlers   *holdings.Registry
	Locks      *LockTable
	Logger     *slog.Logger
}

// Transaction is a named operation with one or more legs, processed
// exactly once. Legs succeed or fail together.
type Transaction struct {
	kind      string
	legs      []Leg
	source    string
	processor Processor
	deps      Deps
	processed bool
}

// New creates a transaction of the given kind against the supplied
// collaborators.
func New(kind string, deps Deps) *Transaction {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Transaction{kind: kind, deps: deps}
}

// Kind returns the transaction's kind label.
func (t *Transaction) Kind() string { return t.kind }

// To appends a leg targeting acct with the given modifier.
func (t *Transaction) To(acct account.Account, mod Modifier) *Transaction {
	t.legs = append(t.legs, Leg{Account: acct, Modifier: mod})
	return t
}

// Source records the initiating actor or plugin.
func (t *Transaction) Source(source string) *Transaction {
	t.source = source
	return t
}

// Processor sets the strategy validating each leg's ending balance.
func (t *Transaction) Processor(p Processor) *Transaction {
	t.processor = p
	return t
}

// legPlan is one leg resolved against its currency with computed balances.
type legPlan struct {
	leg      Leg
	cur      *currency.Currency
	previous decimal.Decimal
	proposed decimal.Decimal
}

// Process runs the transaction: resolve currencies, lock every touched
// tuple, read current balances, validate every proposed ending balance,
// then write all legs. Any rejection or write failure leaves every leg
// untouched. Process may be invoked once; the transaction is discarded
// afterwards.
func (t *Transaction) Process(ctx context.Context) (*Result, error) {
	if t.processed {
		return nil, invalidf("transaction already processed")
	}
	t.processed = true

	if len(t.legs) == 0 {
		return nil, invalidf("transaction has no legs")
	}
	if t.processor == nil {
		t.processor = NewBaseProcessor()
	}

	plans := make([]legPlan, 0, len(t.legs))
	keys := make([]Key, 0, len(t.legs))
	seen := make(map[Key]struct{}, len(t.legs))

	for _, leg := range t.legs {
		if leg.Account == nil {
			return nil, invalidf("unresolvable target account")
		}
		cur, ok := t.deps.Currencies.FindUID(leg.Modifier.Currency)
		if !ok {
			return nil, invalidf("unknown currency uid %d", leg.Modifier.Currency)
		}

		key := Key{Account: leg.Account.Identifier(), Region: leg.Modifier.Region, Currency: cur.UID}
		if _, dup := seen[key]; dup {
			return nil, invalidf("duplicate leg for account %s in %s", leg.Account.Identifier(), leg.Modifier.Region)
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		plans = append(plans, legPlan{leg: leg, cur: cur})
	}

	unlock := t.deps.Locks.Lock(keys...)
	defer unlock()

	// Read and compute under the tuple locks so no concurrent transaction
	// can interleave between read and write.
	for i := range plans {
		p := &plans[i]
		entry, err := t.deps.Handlers.Get(ctx, p.leg.Account, p.leg.Modifier.Region, p.cur, p.cur.Type)
		if err != nil {
			return nil, invalidf("holdings dispatch: %v", err)
		}
		p.previous = entry.Amount

		delta := p.cur.Round(p.leg.Modifier.Amount)
		switch p.leg.Modifier.Op {
		case OpSet:
			p.proposed = delta
		default:
			p.proposed = p.cur.Round(p.previous.Add(delta))
		}

		if err := t.processor.Validate(p.cur, p.previous, p.proposed); err != nil {
			t.deps.Logger.Debug("transaction rejected",
				"kind", t.kind,
				"account", p.leg.Account.Identifier(),
				"error", err,
			)
			return nil, err
		}
	}

	// All legs validated; apply. A write failure rolls back the legs
	// already written so no partial state survives.
	for i := range plans {
		p := &plans[i]
		err := t.deps.Handlers.Set(ctx, p.leg.Account, p.leg.Modifier.Region, p.cur, p.cur.Type, p.proposed)
		if err != nil {
			t.rollback(ctx, plans[:i])
			return nil, invalidf("leg write failed for account %s: %v", p.leg.Account.Identifier(), err)
		}
	}

	result := &Result{
		ID:      id.NewTransactionID(),
		Kind:    t.kind,
		Source:  t.source,
		Success: true,
		Message: "transaction processed",
		Time:    time.Now().UTC(),
	}
	for i := range plans {
		p := &plans[i]
		result.Balances = append(result.Balances, LegBalance{
			Account:  p.leg.Account.Identifier(),
			Region:   p.leg.Modifier.Region,
			Currency: p.cur.UID,
			Ending:   p.leg.Account.Wallet().Total(p.leg.Modifier.Region, p.cur.UID),
		})
	}

	t.deps.Logger.Debug("transaction processed",
		"id", result.ID,
		"kind", t.kind,
		"source", t.source,
		"legs", len(plans),
	)
	return result, nil
}

// rollback restores the previous amounts of already-written legs, in
// reverse order, best-effort.
func (t *Transaction) rollback(ctx context.Context, written []legPlan) {
	for i := len(written) - 1; i >= 0; i-- {
		p := &written[i]
		err := t.deps.Handlers.Set(ctx, p.leg.Account, p.leg.Modifier.Region, p.cur, p.cur.Type, p.previous)
		if err != nil {
			t.deps.Logger.Error("transaction rollback failed",
				"kind", t.kind,
				"account", p.leg.Account.Identifier(),
				"error", err,
			)
		}
	}
}
