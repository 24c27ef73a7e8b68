// Package account defines the account variants, their wallets, and the
// shared-account member model.
package account

import (
	"github.com/google/uuid"

	"github.com/veldtmc/econledger/types"
)

// Account is the common capability surface over the closed variant set
// {PlayerAccount, NonPlayerAccount, SharedAccount}. Shared-only operations
// type-switch on *SharedAccount.
type Account interface {
	// Identifier returns the stable unique id of this account.
	Identifier() uuid.UUID

	// Name returns the display name. Names are unique across accounts.
	Name() string

	// IsPlayer reports whether this account is controlled by a human actor.
	IsPlayer() bool

	// Wallet returns the holdings owned by this account.
	Wallet() *Wallet

	// Entity exposes record timestamps.
	Entity() *types.Entity
}

type base struct {
	id     uuid.UUID
	name   string
	wallet *Wallet
	entity types.Entity
}

func newBase(id uuid.UUID, name string) base {
	return base{
		id:     id,
		name:   name,
		wallet: NewWallet(),
		entity: types.NewEntity(),
	}
}

func (b *base) Identifier() uuid.UUID { return b.id }
func (b *base) Name() string          { return b.name }
func (b *base) Wallet() *Wallet       { return b.wallet }
func (b *base) Entity() *types.Entity { return &b.entity }

// PlayerAccount is an account controlled by a human actor.
type PlayerAccount struct {
	base
}

// NewPlayerAccount creates a player-controlled account.
func NewPlayerAccount(id uuid.UUID, name string) *PlayerAccount {
	return &PlayerAccount{base: newBase(id, name)}
}

// IsPlayer always reports true for player accounts.
func (a *PlayerAccount) IsPlayer() bool { return true }

// NonPlayerAccount is a system-owned account (a server shop, a town bank)
// with no human actor behind it.
type NonPlayerAccount struct {
	base
}

// NewNonPlayerAccount creates a system account.
func NewNonPlayerAccount(id uuid.UUID, name string) *NonPlayerAccount {
	return &NonPlayerAccount{base: newBase(id, name)}
}

// IsPlayer always reports false for non-player accounts.
func (a *NonPlayerAccount) IsPlayer() bool { return false }
