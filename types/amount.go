package types

import "github.com/shopspring/decimal"

// Rescale truncates or pads a decimal to the given number of decimal places,
// rounding half-up (ties round away from zero, matching the stored-amount
// determinism required for reconciliation). shopspring's Round implements
// exactly these semantics.
func Rescale(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// SumAmounts adds a set of decimals, returning zero for an empty set.
func SumAmounts(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
