package trading

import (
	"context"
	"testing"

	"github.com/matryer/is"
	"github.com/shopspring/decimal"

	"predictmarket/internal/model"
	"predictmarket/internal/types"
)

func TestResolveMarketPayouts(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	m := seedMarket(t, svc)
	ctx := context.Background()

	seedUser(t, st, "admin", "root", 1000, true)
	a := seedUser(t, st, "a", "alice", 100, false)
	b := seedUser(t, st, "b", "bob", 100, false)
	a.SetPosition(m.ID, model.Position{YesShares: 5, NoShares: 2})
	b.SetPosition(m.ID, model.Position{YesShares: 0, NoShares: 3})
	is.NoErr(st.UpsertUser(ctx, a))
	is.NoErr(st.UpsertUser(ctx, b))

	res, err := svc.ResolveMarket(ctx, m.ID, "admin", types.OutcomeYes)
	is.NoErr(err)
	is.Equal(res.Market.Status, types.MarketStatusResolved)
	is.Equal(res.Market.Result, types.OutcomeYes)
	is.Equal(res.Message, "Market resolved as YES")
	is.Equal(res.UsersPaid, 1)
	is.True(res.TotalPaid.Equal(decimal.NewFromInt(5)))

	// Alice holds 5 winning YES shares, Bob only losing NO shares.
	a, err = st.GetUser(ctx, "a")
	is.NoErr(err)
	is.True(a.Balance.Equal(decimal.NewFromInt(105)))
	b, err = st.GetUser(ctx, "b")
	is.NoErr(err)
	is.True(b.Balance.Equal(decimal.NewFromInt(100)))

	// No ledger entries are produced for payouts.
	trades, err := st.ListTrades(ctx, m.ID, "")
	is.NoErr(err)
	is.Equal(len(trades), 0)
}

func TestResolveMarketNoSide(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	m := seedMarket(t, svc)
	ctx := context.Background()

	seedUser(t, st, "admin", "root", 1000, true)
	a := seedUser(t, st, "a", "alice", 50, false)
	a.SetPosition(m.ID, model.Position{YesShares: 4, NoShares: 7})
	is.NoErr(st.UpsertUser(ctx, a))

	_, err := svc.ResolveMarket(ctx, m.ID, "admin", types.OutcomeNo)
	is.NoErr(err)

	a, err = st.GetUser(ctx, "a")
	is.NoErr(err)
	is.True(a.Balance.Equal(decimal.NewFromInt(57)))
}

func TestResolveMarketIdempotenceOfRejection(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	m := seedMarket(t, svc)
	ctx := context.Background()

	seedUser(t, st, "admin", "root", 1000, true)

	_, err := svc.ResolveMarket(ctx, m.ID, "admin", types.OutcomeYes)
	is.NoErr(err)

	_, err = svc.ResolveMarket(ctx, m.ID, "admin", types.OutcomeNo)
	is.Equal(KindOf(err), KindAlreadyResolved)

	// The recorded result is untouched by the rejected second call.
	final, err := svc.Market(ctx, m.ID)
	is.NoErr(err)
	is.Equal(final.Result, types.OutcomeYes)
}

func TestResolveMarketAuthorization(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	m := seedMarket(t, svc)
	ctx := context.Background()

	seedUser(t, st, "u1", "alice", 1000, false)

	_, err := svc.ResolveMarket(ctx, m.ID, "u1", types.OutcomeYes)
	is.Equal(KindOf(err), KindUnauthorized)

	_, err = svc.ResolveMarket(ctx, m.ID, "ghost", types.OutcomeYes)
	is.Equal(KindOf(err), KindNotFound)

	// The market must still be open after rejected attempts.
	final, err := svc.Market(ctx, m.ID)
	is.NoErr(err)
	is.Equal(final.Status, types.MarketStatusOpen)
}

func TestResolveMarketValidation(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	ctx := context.Background()

	seedUser(t, st, "admin", "root", 1000, true)

	_, err := svc.ResolveMarket(ctx, "missing", "admin", types.OutcomeYes)
	is.Equal(KindOf(err), KindNotFound)

	m := seedMarket(t, svc)
	_, err = svc.ResolveMarket(ctx, m.ID, "admin", "MAYBE")
	is.Equal(KindOf(err), KindInvalidInput)
}

func TestResolvedMarketRejectsTrades(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	m := seedMarket(t, svc)
	ctx := context.Background()

	seedUser(t, st, "admin", "root", 1000, true)
	_, err := svc.ResolveMarket(ctx, m.ID, "admin", types.OutcomeNo)
	is.NoErr(err)

	_, err = svc.ExecuteTrade(ctx, m.ID, "", TradeRequest{Side: types.SideYes, ShareDelta: floatPtr(1)})
	is.Equal(KindOf(err), KindMarketClosed)
}

func TestScoreboardOrder(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	ctx := context.Background()

	seedUser(t, st, "a", "alice", 120, false)
	seedUser(t, st, "b", "bob", 950, false)
	seedUser(t, st, "c", "carol", 400, false)

	board, err := svc.Scoreboard(ctx)
	is.NoErr(err)
	is.Equal(len(board), 3)
	is.Equal(board[0].Username, "bob")
	is.Equal(board[1].Username, "carol")
	is.Equal(board[2].Username, "alice")
}

func TestPortfolio(t *testing.T) {
	is := is.New(t)
	svc, st := newTestService(t)
	m := seedMarket(t, svc)
	ctx := context.Background()

	u := seedUser(t, st, "u1", "alice", 1000, false)
	u.SetPosition(m.ID, model.Position{YesShares: 2})
	is.NoErr(st.UpsertUser(ctx, u))

	summary, entries, err := svc.Portfolio(ctx, "u1")
	is.NoErr(err)
	is.Equal(summary.Username, "alice")
	is.Equal(len(entries), 1)
	is.Equal(entries[0].YesShares, 2.0)
	is.Equal(entries[0].PriceYes, 0.5)

	_, _, err = svc.Portfolio(ctx, "missing")
	is.Equal(KindOf(err), KindNotFound)
}
