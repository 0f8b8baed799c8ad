package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/shopspring/decimal"

	"predictmarket/internal/model"
	"predictmarket/internal/types"
)

func testMarket(id string) model.Market {
	return model.Market{
		ID:        id,
		Title:     "Will it rain tomorrow?",
		B:         10,
		Status:    types.MarketStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMarketRoundTrip(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetMarket(ctx, "m1")
	is.Equal(err, ErrNotFound)

	m := testMarket("m1")
	is.NoErr(s.UpsertMarket(ctx, m))

	got, err := s.GetMarket(ctx, "m1")
	is.NoErr(err)
	is.Equal(got.Title, m.Title)

	got.QYes = 4
	is.NoErr(s.UpsertMarket(ctx, got))
	got, err = s.GetMarket(ctx, "m1")
	is.NoErr(err)
	is.Equal(got.QYes, 4.0)

	markets, err := s.ListMarkets(ctx)
	is.NoErr(err)
	is.Equal(len(markets), 1)
}

func TestUserLookupByUsername(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	u := model.User{ID: "u1", Username: "alice", Balance: decimal.NewFromInt(1000)}
	is.NoErr(s.UpsertUser(ctx, u))

	got, err := s.GetUserByUsername(ctx, "alice")
	is.NoErr(err)
	is.Equal(got.ID, "u1")

	_, err = s.GetUserByUsername(ctx, "bob")
	is.Equal(err, ErrNotFound)
}

func TestStoredUserIsIsolated(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	u := model.User{ID: "u1", Username: "alice", Balance: decimal.NewFromInt(1000)}
	u.SetPosition("m1", model.Position{YesShares: 2})
	is.NoErr(s.UpsertUser(ctx, u))

	got, err := s.GetUser(ctx, "u1")
	is.NoErr(err)
	got.Positions["m1"] = model.Position{YesShares: 99}

	again, err := s.GetUser(ctx, "u1")
	is.NoErr(err)
	is.Equal(again.Positions["m1"].YesShares, 2.0)
}

func TestSumTradeCostFilters(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	add := func(market, user string, cost float64) {
		is.NoErr(s.AppendTrade(ctx, model.Trade{
			ID:       market + user,
			MarketID: market,
			UserID:   user,
			DeltaYes: 1,
			Cost:     decimal.NewFromFloat(cost),
		}))
	}
	add("m1", "u1", 10)
	add("m1", "u1", 5.5)
	add("m1", "u2", 3)
	add("m2", "u1", 7)
	add("m1", "", 2) // anonymous

	sum, err := s.SumTradeCost(ctx, "m1", "u1")
	is.NoErr(err)
	is.True(sum.Equal(decimal.NewFromFloat(15.5)))

	sum, err = s.SumTradeCost(ctx, "m1", "")
	is.NoErr(err)
	is.True(sum.Equal(decimal.NewFromFloat(20.5)))

	trades, err := s.ListTrades(ctx, "m1", "u1")
	is.NoErr(err)
	is.Equal(len(trades), 2)
}

func TestSnapshotRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.json")

	s, err := NewFileStore(path)
	is.NoErr(err)
	is.NoErr(s.UpsertMarket(ctx, testMarket("m1")))
	u := model.User{ID: "u1", Username: "alice", Balance: decimal.NewFromInt(1000)}
	u.SetPosition("m1", model.Position{NoShares: 3})
	is.NoErr(s.UpsertUser(ctx, u))
	is.NoErr(s.AppendTrade(ctx, model.Trade{ID: "t1", MarketID: "m1", UserID: "u1", DeltaNo: 3, Cost: decimal.NewFromFloat(1.5)}))

	reloaded, err := NewFileStore(path)
	is.NoErr(err)

	m, err := reloaded.GetMarket(ctx, "m1")
	is.NoErr(err)
	is.Equal(m.Status, types.MarketStatusOpen)

	got, err := reloaded.GetUserByUsername(ctx, "alice")
	is.NoErr(err)
	is.Equal(got.Positions["m1"].NoShares, 3.0)
	is.True(got.Balance.Equal(decimal.NewFromInt(1000)))

	sum, err := reloaded.SumTradeCost(ctx, "m1", "u1")
	is.NoErr(err)
	is.True(sum.Equal(decimal.NewFromFloat(1.5)))
}
