// Package transaction implements the atomic unit of balance mutation:
// typed transactions built from holdings modifiers, processed under
// tuple-scoped locks with all-or-nothing semantics across legs.
package transaction

import "github.com/shopspring/decimal"

// Op selects how a modifier combines with the current balance.
type Op string

const (
	// OpAdd applies the modifier amount as a signed delta.
	OpAdd Op = "add"

	// OpSet replaces the balance with the modifier amount outright.
	OpSet Op = "set"
)

// Modifier is an instruction describing a pending balance change against
// one (region, currency) target.
type Modifier struct {
	Region   string          `json:"region"`
	Currency int64           `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Op       Op              `json:"op"`
}

// NewModifier creates a delta modifier.
func NewModifier(region string, cur int64, amount decimal.Decimal) Modifier {
	return Modifier{Region: region, Currency: cur, Amount: amount, Op: OpAdd}
}

// NewSetModifier creates a modifier that replaces the balance outright.
func NewSetModifier(region string, cur int64, amount decimal.Decimal) Modifier {
	return Modifier{Region: region, Currency: cur, Amount: amount, Op: OpSet}
}

// Counter returns the negated modifier, expressing a withdrawal as the
// inverse of a deposit against the same target. Counter of a set modifier
// is itself; there is no meaningful inverse of an absolute write.
func (m Modifier) Counter() Modifier {
	if m.Op == OpSet {
		return m
	}
	return Modifier{Region: m.Region, Currency: m.Currency, Amount: m.Amount.Neg(), Op: m.Op}
}
