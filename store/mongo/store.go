// Package mongo implements the store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/veldtmc/econledger"
	"github.com/veldtmc/econledger/account"
	"github.com/veldtmc/econledger/currency"
	ledgerstore "github.com/veldtmc/econledger/store"
)

// Collection name constants.
const (
	colAccounts = "econ_accounts"
	colHoldings = "econ_holdings"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store against the named database on client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Migrate creates the unique indexes both collections rely on.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "name_lower", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colHoldings: {
			{
				Keys: bson.D{
					{Key: "account", Value: 1},
					{Key: "region", Value: 1},
					{Key: "currency", Value: 1},
					{Key: "type", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "region", Value: 1},
					{Key: "currency", Value: 1},
				},
			},
		},
	}

	for col, models := range indexes {
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("econledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Account store ====================

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) error {
	_, err := s.db.Collection(colAccounts).InsertOne(ctx, toAccountModel(acct))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return econledger.ErrDuplicateAccount
		}
		return fmt.Errorf("econledger/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id.String()})
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (account.Account, error) {
	return s.findAccount(ctx, bson.M{"name_lower": nameKey(name)})
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, econledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("econledger/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) error {
	res, err := s.db.Collection(colAccounts).ReplaceOne(ctx,
		bson.M{"_id": acct.Identifier().String()},
		toAccountModel(acct),
	)
	if err != nil {
		return fmt.Errorf("econledger/mongo: update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return econledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Collection(colAccounts).DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("econledger/mongo: delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return econledger.ErrAccountNotFound
	}
	_, err = s.db.Collection(colHoldings).DeleteMany(ctx, bson.M{"account": id.String()})
	if err != nil {
		return fmt.Errorf("econledger/mongo: delete account holdings: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	cursor, err := s.db.Collection(colAccounts).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name_lower", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("econledger/mongo: list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var result []account.Account
	for cursor.Next(ctx) {
		var m accountModel
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("econledger/mongo: decode account: %w", err)
		}
		acct, err := fromAccountModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, cursor.Err()
}

// ==================== Holdings store ====================

func (s *Store) UpsertHolding(ctx context.Context, owner uuid.UUID, entry account.HoldingsEntry) error {
	m, err := toHoldingModel(owner, entry)
	if err != nil {
		return err
	}

	filter := bson.M{
		"account":  m.Account,
		"region":   m.Region,
		"currency": m.Currency,
		"type":     m.Type,
	}
	_, err = s.db.Collection(colHoldings).ReplaceOne(ctx, filter, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("econledger/mongo: upsert holding: %w", err)
	}
	return nil
}

func (s *Store) GetHolding(ctx context.Context, owner uuid.UUID, region string, cur int64, typ currency.Type) (account.HoldingsEntry, bool, error) {
	filter := bson.M{
		"account":  owner.String(),
		"region":   region,
		"currency": cur,
		"type":     string(typ),
	}

	var m holdingModel
	err := s.db.Collection(colHoldings).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return account.HoldingsEntry{}, false, nil
		}
		return account.HoldingsEntry{}, false, fmt.Errorf("econledger/mongo: get holding: %w", err)
	}

	entry, err := fromHoldingModel(&m)
	if err != nil {
		return account.HoldingsEntry{}, false, err
	}
	return entry, true, nil
}

// TopBalances sums each account's holdings for the pair server side,
// then resolves display names in one follow-up query.
func (s *Store) TopBalances(ctx context.Context, region string, cur int64, limit int) ([]ledgerstore.BalanceRow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"region": region, "currency": cur}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$account",
			"amount": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "amount", Value: -1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := s.db.Collection(colHoldings).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("econledger/mongo: top balances: %w", err)
	}
	defer cursor.Close(ctx)

	type grouped struct {
		Account string          `bson:"_id"`
		Amount  bson.Decimal128 `bson:"amount"`
	}

	var rows []ledgerstore.BalanceRow
	var ids []string
	for cursor.Next(ctx) {
		var g grouped
		if err := cursor.Decode(&g); err != nil {
			return nil, fmt.Errorf("econledger/mongo: decode balance group: %w", err)
		}
		id, err := uuid.Parse(g.Account)
		if err != nil {
			return nil, fmt.Errorf("econledger/mongo: balance account %q: %w", g.Account, err)
		}
		amount, err := decimal.NewFromString(g.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("econledger/mongo: balance amount %s: %w", g.Amount, err)
		}
		rows = append(rows, ledgerstore.BalanceRow{Account: id, Amount: amount})
		ids = append(ids, g.Account)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	names, err := s.accountNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Name = names[rows[i].Account.String()]
	}
	return rows, nil
}

func (s *Store) accountNames(ctx context.Context, ids []string) (map[string]string, error) {
	cursor, err := s.db.Collection(colAccounts).Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("econledger/mongo: resolve names: %w", err)
	}
	defer cursor.Close(ctx)

	names := make(map[string]string, len(ids))
	for cursor.Next(ctx) {
		var doc struct {
			ID   string `bson:"_id"`
			Name string `bson:"name"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("econledger/mongo: decode name: %w", err)
		}
		names[doc.ID] = doc.Name
	}
	return names, cursor.Err()
}
