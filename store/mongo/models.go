package mongo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
)

// Account kinds as stored in the kind field.
const (
	kindPlayer    = "player"
	kindNonPlayer = "nonplayer"
	kindShared    = "shared"
)

// ==================== Account models ====================

type accountModel struct {
	ID        string        `bson:"_id"`
	Name      string        `bson:"name"`
	NameLower string        `bson:"name_lower"`
	Kind      string        `bson:"kind"`
	Owner     string        `bson:"owner,omitempty"`
	Members   []memberModel `bson:"members,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type memberModel struct {
	ID    string          `bson:"id"`
	Perms map[string]bool `bson:"perms"`
}

func toAccountModel(acct account.Account) *accountModel {
	m := &accountModel{
		ID:        acct.Identifier().String(),
		Name:      acct.Name(),
		NameLower: nameKey(acct.Name()),
		CreatedAt: acct.Entity().CreatedAt,
		UpdatedAt: acct.Entity().UpdatedAt,
	}

	switch a := acct.(type) {
	case *account.SharedAccount:
		m.Kind = kindShared
		m.Owner = a.Owner().String()
		for _, member := range a.Members() {
			perms := make(map[string]bool, len(member.Perms))
			for p, v := range member.Perms {
				perms[string(p)] = v
			}
			m.Members = append(m.Members, memberModel{ID: member.ID.String(), Perms: perms})
		}
	case *account.PlayerAccount:
		m.Kind = kindPlayer
	default:
		m.Kind = kindNonPlayer
	}
	return m
}

func fromAccountModel(m *accountModel) (account.Account, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("econledger/mongo: account id %q: %w", m.ID, err)
	}

	var acct account.Account
	switch m.Kind {
	case kindShared:
		owner, err := uuid.Parse(m.Owner)
		if err != nil {
			return nil, fmt.Errorf("econledger/mongo: account owner %q: %w", m.Owner, err)
		}
		shared := account.NewSharedAccount(id, m.Name, owner)
		members := make([]*account.Member, 0, len(m.Members))
		for _, mm := range m.Members {
			mid, err := uuid.Parse(mm.ID)
			if err != nil {
				return nil, fmt.Errorf("econledger/mongo: member id %q: %w", mm.ID, err)
			}
			member := account.NewMember(mid)
			for p, v := range mm.Perms {
				member.SetPermission(account.Permission(p), v)
			}
			members = append(members, member)
		}
		shared.RestoreMembers(members)
		acct = shared
	case kindPlayer:
		acct = account.NewPlayerAccount(id, m.Name)
	default:
		acct = account.NewNonPlayerAccount(id, m.Name)
	}

	acct.Entity().CreatedAt = m.CreatedAt
	acct.Entity().UpdatedAt = m.UpdatedAt
	return acct, nil
}

// ==================== Holdings models ====================

// holdingModel stores amounts as Decimal128 so the top-balance
// aggregation can sum them server side without precision loss.
type holdingModel struct {
	Account  string          `bson:"account"`
	Region   string          `bson:"region"`
	Currency int64           `bson:"currency"`
	Type     string          `bson:"type"`
	Amount   bson.Decimal128 `bson:"amount"`
}

func toHoldingModel(owner uuid.UUID, entry account.HoldingsEntry) (*holdingModel, error) {
	amount, err := bson.ParseDecimal128(entry.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("econledger/mongo: amount %s: %w", entry.Amount, err)
	}
	return &holdingModel{
		Account:  owner.String(),
		Region:   entry.Region,
		Currency: entry.Currency,
		Type:     string(entry.Type),
		Amount:   amount,
	}, nil
}

func fromHoldingModel(m *holdingModel) (account.HoldingsEntry, error) {
	amount, err := decimal.NewFromString(m.Amount.String())
	if err != nil {
		return account.HoldingsEntry{}, fmt.Errorf("econledger/mongo: amount %s: %w", m.Amount, err)
	}
	return account.HoldingsEntry{
		Region:   m.Region,
		Currency: m.Currency,
		Type:     currency.Type(m.Type),
		Amount:   amount,
	}, nil
}
