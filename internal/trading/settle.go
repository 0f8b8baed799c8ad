package trading

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"predictmarket/internal/lmsr"
	"predictmarket/internal/marketfeed"
	"predictmarket/internal/model"
	"predictmarket/internal/store"
	"predictmarket/internal/types"
)

type SettlementResult struct {
	Market    model.Market    `json:"market"`
	Message   string          `json:"message"`
	UsersPaid int             `json:"users_paid"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}

// ResolveMarket closes an open market to the given outcome and credits every
// holder one unit of balance per winning-side share. Losing shares pay
// nothing and no ledger entries are produced for payouts. The transition is
// one-way: a second call fails with AlreadyResolved and leaves the recorded
// result untouched. The market's lock is held for the whole payout pass, so
// trades on the same market are excluded for its duration.
func (s *Service) ResolveMarket(ctx context.Context, marketID, callerID string, outcome types.Outcome) (SettlementResult, error) {
	caller, err := s.store.GetUser(ctx, callerID)
	if errors.Is(err, store.ErrNotFound) {
		return SettlementResult{}, errf(KindNotFound, "user not found")
	}
	if err != nil {
		return SettlementResult{}, storageErr("load user", err)
	}
	if !caller.IsAdmin {
		return SettlementResult{}, errf(KindUnauthorized, "admin access required")
	}
	if !outcome.Valid() {
		return SettlementResult{}, errf(KindInvalidInput, "outcome must be YES or NO")
	}

	mu := s.locks.get(marketID)
	mu.Lock()
	defer mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if errors.Is(err, store.ErrNotFound) {
		return SettlementResult{}, errf(KindNotFound, "market not found")
	}
	if err != nil {
		return SettlementResult{}, storageErr("load market", err)
	}
	if market.Status == types.MarketStatusResolved {
		return SettlementResult{}, errf(KindAlreadyResolved, "market already resolved")
	}

	preMarket := market
	market.Status = types.MarketStatusResolved
	market.Result = outcome
	if err := s.store.UpsertMarket(ctx, market); err != nil {
		return SettlementResult{}, storageErr("persist market", err)
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.rollbackMarket(ctx, preMarket)
		return SettlementResult{}, storageErr("list users", err)
	}

	// Payouts are all-or-nothing: a failed user write undoes every credit
	// already applied plus the market transition.
	var paid []model.User
	result := SettlementResult{TotalPaid: decimal.Zero}
	for _, u := range users {
		pos := u.Position(marketID)
		shares := pos.YesShares
		if outcome == types.OutcomeNo {
			shares = pos.NoShares
		}
		if shares <= 0 {
			continue
		}
		pre := u
		payout := decimal.NewFromFloat(shares)
		u.Balance = u.Balance.Add(payout)
		if err := s.store.UpsertUser(ctx, u); err != nil {
			for _, p := range paid {
				s.rollbackUser(ctx, p)
			}
			s.rollbackMarket(ctx, preMarket)
			return SettlementResult{}, storageErr("persist payout", err)
		}
		paid = append(paid, pre)
		result.UsersPaid++
		result.TotalPaid = result.TotalPaid.Add(payout)
		log.Debug().Str("user_id", u.ID).Str("market_id", marketID).Str("payout", payout.String()).Msg("payout credited")
	}

	result.Market = market
	result.Message = "Market resolved as " + string(outcome)

	log.Info().
		Str("market_id", marketID).
		Str("outcome", string(outcome)).
		Int("users_paid", result.UsersPaid).
		Str("total_paid", result.TotalPaid.String()).
		Msg("market resolved")

	s.publish(marketfeed.Event{Type: marketfeed.EventTypeResolution, MarketID: marketID, Data: resolutionEvent{
		Outcome:  outcome,
		PriceYes: lmsr.PriceYes(market.QYes, market.QNo, market.B),
		PriceNo:  lmsr.PriceNo(market.QYes, market.QNo, market.B),
	}})

	return result, nil
}

type resolutionEvent struct {
	Outcome  types.Outcome `json:"outcome"`
	PriceYes float64       `json:"price_yes"`
	PriceNo  float64       `json:"price_no"`
}

type ScoreboardEntry struct {
	UserID   string          `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// Scoreboard lists all users by balance, richest first.
func (s *Service) Scoreboard(ctx context.Context) ([]ScoreboardEntry, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	out := make([]ScoreboardEntry, 0, len(users))
	for _, u := range users {
		out = append(out, ScoreboardEntry{UserID: u.ID, Username: u.Username, Balance: u.Balance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance.GreaterThan(out[j].Balance) })
	return out, nil
}

type PortfolioEntry struct {
	MarketID  string  `json:"market_id"`
	Title     string  `json:"title"`
	YesShares float64 `json:"yes_shares"`
	NoShares  float64 `json:"no_shares"`
	PriceYes  float64 `json:"current_yes_price"`
	PriceNo   float64 `json:"current_no_price"`
}

// Portfolio joins the user's positions with current prices across all
// markets, including markets where the user holds nothing.
func (s *Service) Portfolio(ctx context.Context, userID string) (model.UserSummary, []PortfolioEntry, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.UserSummary{}, nil, errf(KindNotFound, "user not found")
	}
	if err != nil {
		return model.UserSummary{}, nil, storageErr("load user", err)
	}
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return model.UserSummary{}, nil, storageErr("list markets", err)
	}
	entries := make([]PortfolioEntry, 0, len(markets))
	for _, m := range markets {
		pos := u.Position(m.ID)
		entries = append(entries, PortfolioEntry{
			MarketID:  m.ID,
			Title:     m.Title,
			YesShares: pos.YesShares,
			NoShares:  pos.NoShares,
			PriceYes:  lmsr.PriceYes(m.QYes, m.QNo, m.B),
			PriceNo:   lmsr.PriceNo(m.QYes, m.QNo, m.B),
		})
	}
	return u.Summary(), entries, nil
}
