// Package postgres implements the store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/veldtmc/econledger"
	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	ledgerstore "github.com/veldtmc/econledger/store"
)

// Account kinds as stored in the kind column.
const (
	kindPlayer    = "player"
	kindNonPlayer = "nonplayer"
	kindShared    = "shared"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect parses the connection string, opens a pool, and verifies
// connectivity before returning a store.
func Connect(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("econledger/postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("econledger/postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("econledger/postgres: ping: %w", err)
	}
	return New(pool), nil
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate applies the schema statements in order.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("econledger/postgres: migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// memberRecord is the JSONB shape of one shared-account member.
type memberRecord struct {
	ID    uuid.UUID       `json:"id"`
	Perms map[string]bool `json:"perms"`
}

func accountColumns(acct account.Account) (kind string, owner *uuid.UUID, members []byte, err error) {
	kind = kindNonPlayer
	records := []memberRecord{}

	switch a := acct.(type) {
	case *account.PlayerAccount:
		kind = kindPlayer
	case *account.SharedAccount:
		kind = kindShared
		o := a.Owner()
		owner = &o
		for _, m := range a.Members() {
			perms := make(map[string]bool, len(m.Perms))
			for p, v := range m.Perms {
				perms[string(p)] = v
			}
			records = append(records, memberRecord{ID: m.ID, Perms: perms})
		}
	}

	members, err = json.Marshal(records)
	if err != nil {
		return "", nil, nil, fmt.Errorf("econledger/postgres: encode members: %w", err)
	}
	return kind, owner, members, nil
}

func buildAccount(id uuid.UUID, name, kind string, owner *uuid.UUID, members []byte, createdAt, updatedAt time.Time) (account.Account, error) {
	var acct account.Account
	switch kind {
	case kindShared:
		if owner == nil {
			return nil, fmt.Errorf("econledger/postgres: shared account %s has no owner", id)
		}
		shared := account.NewSharedAccount(id, name, *owner)

		var records []memberRecord
		if len(members) > 0 {
			if err := json.Unmarshal(members, &records); err != nil {
				return nil, fmt.Errorf("econledger/postgres: decode members: %w", err)
			}
		}
		restored := make([]*account.Member, 0, len(records))
		for _, r := range records {
			m := account.NewMember(r.ID)
			for p, v := range r.Perms {
				m.SetPermission(account.Permission(p), v)
			}
			restored = append(restored, m)
		}
		shared.RestoreMembers(restored)
		acct = shared
	case kindPlayer:
		acct = account.NewPlayerAccount(id, name)
	default:
		acct = account.NewNonPlayerAccount(id, name)
	}

	acct.Entity().CreatedAt = createdAt
	acct.Entity().UpdatedAt = updatedAt
	return acct, nil
}

// ==================== Account store ====================

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) error {
	kind, owner, members, err := accountColumns(acct)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO econ_accounts (id, name, name_lower, kind, owner, members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.pool.Exec(ctx, query,
		acct.Identifier(), acct.Name(), nameKey(acct.Name()), kind, owner, members,
		acct.Entity().CreatedAt, acct.Entity().UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return econledger.ErrDuplicateAccount
		}
		return fmt.Errorf("econledger/postgres: create account: %w", err)
	}
	return nil
}

const accountSelect = `SELECT id, name, kind, owner, members, created_at, updated_at FROM econ_accounts`

func (s *Store) scanAccount(row pgx.Row) (account.Account, error) {
	var (
		id        uuid.UUID
		name      string
		kind      string
		owner     *uuid.UUID
		members   []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &name, &kind, &owner, &members, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, econledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("econledger/postgres: scan account: %w", err)
	}
	return buildAccount(id, name, kind, owner, members, createdAt, updatedAt)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, accountSelect+` WHERE id = $1`, id))
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (account.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, accountSelect+` WHERE name_lower = $1`, nameKey(name)))
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) error {
	kind, owner, members, err := accountColumns(acct)
	if err != nil {
		return err
	}

	query := `
		UPDATE econ_accounts
		SET name = $2, name_lower = $3, kind = $4, owner = $5, members = $6, updated_at = $7
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		acct.Identifier(), acct.Name(), nameKey(acct.Name()), kind, owner, members,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return econledger.ErrDuplicateAccount
		}
		return fmt.Errorf("econledger/postgres: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return econledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	// Holdings go with the account via ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx, `DELETE FROM econ_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("econledger/postgres: delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return econledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	rows, err := s.pool.Query(ctx, accountSelect+` ORDER BY name_lower`)
	if err != nil {
		return nil, fmt.Errorf("econledger/postgres: list accounts: %w", err)
	}
	defer rows.Close()

	var result []account.Account
	for rows.Next() {
		acct, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}

// ==================== Holdings store ====================

func (s *Store) UpsertHolding(ctx context.Context, owner uuid.UUID, entry account.HoldingsEntry) error {
	query := `
		INSERT INTO econ_holdings (account, region, currency, type, amount)
		VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (account, region, currency, type)
		DO UPDATE SET amount = EXCLUDED.amount
	`
	_, err := s.pool.Exec(ctx, query,
		owner, entry.Region, entry.Currency, string(entry.Type), entry.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("econledger/postgres: upsert holding: %w", err)
	}
	return nil
}

func (s *Store) GetHolding(ctx context.Context, owner uuid.UUID, region string, cur int64, typ currency.Type) (account.HoldingsEntry, bool, error) {
	query := `
		SELECT amount::text FROM econ_holdings
		WHERE account = $1 AND region = $2 AND currency = $3 AND type = $4
	`
	var text string
	err := s.pool.QueryRow(ctx, query, owner, region, cur, string(typ)).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.HoldingsEntry{}, false, nil
		}
		return account.HoldingsEntry{}, false, fmt.Errorf("econledger/postgres: get holding: %w", err)
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return account.HoldingsEntry{}, false, fmt.Errorf("econledger/postgres: amount %q: %w", text, err)
	}
	return account.HoldingsEntry{Region: region, Currency: cur, Type: typ, Amount: amount}, true, nil
}

func (s *Store) TopBalances(ctx context.Context, region string, cur int64, limit int) ([]ledgerstore.BalanceRow, error) {
	query := `
		SELECT h.account, a.name, SUM(h.amount)::text
		FROM econ_holdings h
		JOIN econ_accounts a ON a.id = h.account
		WHERE h.region = $1 AND h.currency = $2
		GROUP BY h.account, a.name
		ORDER BY SUM(h.amount) DESC, a.name
	`
	args := []any{region, cur}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("econledger/postgres: top balances: %w", err)
	}
	defer rows.Close()

	var result []ledgerstore.BalanceRow
	for rows.Next() {
		var (
			row  ledgerstore.BalanceRow
			text string
		)
		if err := rows.Scan(&row.Account, &row.Name, &text); err != nil {
			return nil, fmt.Errorf("econledger/postgres: scan balance: %w", err)
		}
		row.Amount, err = decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("econledger/postgres: amount %q: %w", text, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
