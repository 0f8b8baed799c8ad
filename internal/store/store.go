// Package store defines the persistence contract consumed by the trading
// engine and provides an in-memory implementation with optional JSON
// snapshots. A PostgreSQL implementation lives in the postgres subpackage.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"predictmarket/internal/model"
)

// ErrNotFound is returned when a requested market or user does not exist.
var ErrNotFound = errors.New("not found")

// Store is the durable record store for markets, users and the trade ledger.
// Each call is independently durable before it returns. Callers are
// responsible for serializing read-modify-write sequences; the store itself
// only guarantees that individual operations are safe under concurrency.
type Store interface {
	GetMarket(ctx context.Context, id string) (model.Market, error)
	UpsertMarket(ctx context.Context, m model.Market) error
	ListMarkets(ctx context.Context) ([]model.Market, error)

	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	UpsertUser(ctx context.Context, u model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)

	// AppendTrade adds an entry to the immutable trade ledger.
	AppendTrade(ctx context.Context, t model.Trade) error
	// ListTrades returns ledger entries for a market, oldest first. userID
	// narrows to one user's trades when non-empty.
	ListTrades(ctx context.Context, marketID, userID string) ([]model.Trade, error)
	// SumTradeCost totals the cost of matching ledger entries. Used for the
	// per-user per-market allowance check.
	SumTradeCost(ctx context.Context, marketID, userID string) (decimal.Decimal, error)
}
