// Package currency defines currencies, their type tags, and the registry
// used to resolve them by identifier, symbol, or alias.
package currency

import (
	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger/types"
)

// Type tags how a currency's balances are backed.
type Type string

const (
	// TypeVirtual is a standard stored balance.
	TypeVirtual Type = "virtual"

	// TypeMirrored is a balance mirrored into a live external counter
	// (for example an experience total on a connected actor). The live
	// value is the source of truth while reachable; the wallet holds the
	// last known value as a cache.
	TypeMirrored Type = "mirrored"
)

// Currency describes a single currency known to the engine.
//
// Identifier and UID are each globally unique within a registry.
// DecimalPlaces is fixed for the currency's lifetime once holdings exist.
type Currency struct {
	types.Entity

	Identifier    string   `json:"identifier"`
	UID           int64    `json:"uid"`
	DecimalPlaces int32    `json:"decimal_places"`
	Singular      string   `json:"singular"`
	Plural        string   `json:"plural"`
	Symbol        string   `json:"symbol,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
	Type          Type     `json:"type"`

	// MinBalance is the lowest balance a processor without overdraft
	// support will allow. Defaults to zero.
	MinBalance decimal.Decimal `json:"min_balance"`

	// MaxBalance caps balances when positive; the zero value means
	// unbounded.
	MaxBalance decimal.Decimal `json:"max_balance"`
}

// Round rescales an amount to this currency's decimal places, half-up.
func (c *Currency) Round(d decimal.Decimal) decimal.Decimal {
	return types.Rescale(d, c.DecimalPlaces)
}

// HasCeiling reports whether this currency caps balances.
func (c *Currency) HasCeiling() bool {
	return c.MaxBalance.IsPositive()
}
