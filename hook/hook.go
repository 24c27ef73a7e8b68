// Package hook lets host integrations observe engine events. Hooks are
// notification-only: they cannot veto an operation, and a slow or
// failing hook never blocks the money path.
package hook

import (
	"context"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/transaction"
)

// Hook is the base interface every hook implements. Event delivery is
// opt-in per interface: a hook receives only the events whose interfaces
// it implements.
type Hook interface {
	// Name returns a unique identifier for the hook.
	Name() string
}

// OnAccountCreated receives newly created accounts.
type OnAccountCreated interface {
	Hook
	OnAccountCreated(ctx context.Context, acct account.Account) error
}

// OnAccountDeleted receives deleted accounts.
type OnAccountDeleted interface {
	Hook
	OnAccountDeleted(ctx context.Context, acct account.Account) error
}

// OnTransactionProcessed receives the result of every successful
// transaction.
type OnTransactionProcessed interface {
	Hook
	OnTransactionProcessed(ctx context.Context, result *transaction.Result) error
}

// OnTransactionFailed receives the result of every rejected or failed
// transaction.
type OnTransactionFailed interface {
	Hook
	OnTransactionFailed(ctx context.Context, result *transaction.Result) error
}
