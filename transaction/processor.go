package transaction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/currency"
)

// ErrInvalid marks every transaction-processing failure: floor violations,
// unknown currencies, unresolvable targets, handler dispatch problems.
var ErrInvalid = errors.New("transaction: invalid")

// InvalidError carries the human-readable reason a transaction was
// rejected. It matches ErrInvalid under errors.Is.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "transaction: invalid: " + e.Reason
}

// Is reports ErrInvalid identity for errors.Is chains.
func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalid
}

func invalidf(format string, args ...any) error {
	return &InvalidError{Reason: fmt.Sprintf(format, args...)}
}

// Processor decides whether a computed post-leg balance is acceptable.
// Rejecting any leg aborts the entire transaction before any write.
type Processor interface {
	// Name labels the processor for receipts and logs.
	Name() string

	// Validate inspects one leg's proposed ending balance. A non-nil
	// return must match ErrInvalid and aborts the transaction.
	Validate(cur *currency.Currency, current, proposed decimal.Decimal) error
}

// BaseProcessor enforces the currency's floor (MinBalance, zero by
// default) and ceiling (MaxBalance when set). Overdraft can be allowed
// per-processor, in which case the floor is waived.
type BaseProcessor struct {
	AllowOverdraft bool
}

// NewBaseProcessor creates the default processor: no overdraft.
func NewBaseProcessor() *BaseProcessor {
	return &BaseProcessor{}
}

// Name labels the processor.
func (p *BaseProcessor) Name() string { return "base" }

// Validate rejects balances below the floor or above the ceiling.
func (p *BaseProcessor) Validate(cur *currency.Currency, _, proposed decimal.Decimal) error {
	if !p.AllowOverdraft && proposed.LessThan(cur.MinBalance) {
		return invalidf("insufficient funds: %s balance would drop to %s", cur.Identifier, proposed)
	}
	if cur.HasCeiling() && proposed.GreaterThan(cur.MaxBalance) {
		return invalidf("balance cap exceeded: %s balance would reach %s", cur.Identifier, proposed)
	}
	return nil
}
