// Package econledger provides a multi-currency, multi-region holdings
// ledger and transaction engine for game servers and similar hosts.
//
// Econledger is designed as a library, not a service. Import it directly
// into your application, wire a store, and call the engine. It provides:
//
//   - Accounts for players, integrations, and shared ownership
//   - Per-region, per-currency balances with half-up rounding at each
//     currency's declared scale
//   - Atomic multi-leg transactions with per-tuple locking
//   - Pluggable holdings handlers, including live-mirrored balances
//     (experience bars, scoreboard counters) with cache fallback
//   - A cached top-balances read model and receipt history hooks
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/veldtmc/econledger"
//	    "github.com/veldtmc/econledger/currency"
//	    "github.com/veldtmc/econledger/store/postgres"
//	)
//
//	store, err := postgres.Connect(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	currencies := currency.NewRegistry()
//	currencies.Register(&currency.Currency{
//	    Identifier:    "dollar",
//	    UID:           1,
//	    DecimalPlaces: 2,
//	    Symbol:        "$",
//	    Type:          currency.TypeVirtual,
//	})
//
//	engine := econledger.New(store, currencies)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Accounts hold a wallet of balances keyed by (region, currency, type):
//
//	acct, err := engine.CreatePlayerAccount(ctx, playerID, "Steve")
//
// Balance changes flow through transactions. The convenience funnels
// cover the common cases:
//
//	result := engine.Deposit(ctx, acct, "", "dollar", amount, "shop")
//	if !result.Success {
//	    // result.Message explains the rejection
//	}
//
// A withdrawal is a deposit of the countered modifier, so both
// directions share one validation and rounding path. Transfers process
// both legs under all involved tuple locks and either both apply or
// neither does.
//
// For anything beyond the funnels, build the transaction directly:
//
//	result, err := engine.NewTransaction("pay").
//	    To(from, mod.Counter()).
//	    To(to, mod).
//	    Source("market").
//	    Process(ctx)
//
// # Identity
//
// Accounts are identified by UUID, matching the platform's player
// identity. Engine-minted identifiers use TypeID:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41   // Processed transaction
//	rcpt_01h455vb4pex5vsknk084sn02q  // Receipt in a history read model
//
// TypeIDs are K-sortable, giving receipts natural time-ordering.
package econledger
