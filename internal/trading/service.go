// Package trading implements the LMSR market engine: trade execution against
// per-market risk limits, market resolution with 1:1 payouts, and the
// read-only price/allowance queries.
package trading

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"predictmarket/internal/lmsr"
	"predictmarket/internal/marketfeed"
	"predictmarket/internal/model"
	"predictmarket/internal/store"
	"predictmarket/internal/types"
)

// costPrecision is the number of decimal places a trade cost is rounded to
// before it is charged and recorded.
const costPrecision = 6

type Config struct {
	// MaxSharesPerTrade caps the share quantity of a single trade.
	MaxSharesPerTrade float64
	// MaxCostPerMarket caps both a single cash-amount request and a user's
	// cumulative spend on one market.
	MaxCostPerMarket decimal.Decimal
	// AllowAnonymous permits trades with no caller identity. Such trades move
	// market quantities and are recorded, but no balance or allowance
	// accounting applies to them.
	AllowAnonymous bool
}

func DefaultConfig() Config {
	return Config{
		MaxSharesPerTrade: 10,
		MaxCostPerMarket:  decimal.NewFromInt(100),
		AllowAnonymous:    true,
	}
}

type Service struct {
	store store.Store
	cfg   Config
	locks *marketLocks
	bus   *marketfeed.Bus
}

// NewService wires the engine to its store. bus may be nil when no live feed
// is attached (tests).
func NewService(st store.Store, cfg Config, bus *marketfeed.Bus) *Service {
	return &Service{store: st, cfg: cfg, locks: newMarketLocks(), bus: bus}
}

// TradeRequest is either an exact share quantity or an exact cash amount on
// one side of a market. Exactly one of ShareDelta and CashAmount must be set.
type TradeRequest struct {
	Side       types.Side
	ShareDelta *float64
	CashAmount *float64
}

type TradeResult struct {
	Trade  model.Trade  `json:"trade"`
	Market model.Market `json:"market"`
	User   *model.User  `json:"-"`
}

// ExecuteTrade validates req against the market's and caller's state and, if
// every check passes, applies it: quantities move, the caller (when
// identified) is debited and their position grows, and a ledger entry is
// appended. The whole validate-then-apply sequence runs under the market's
// lock, so concurrent trades on one market are strictly ordered and each
// validates against the post-state of the previous one. userID may be empty
// for an anonymous trade when the engine allows it.
func (s *Service) ExecuteTrade(ctx context.Context, marketID, userID string, req TradeRequest) (TradeResult, error) {
	mu := s.locks.get(marketID)
	mu.Lock()
	defer mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if errors.Is(err, store.ErrNotFound) {
		return TradeResult{}, errf(KindNotFound, "market not found")
	}
	if err != nil {
		return TradeResult{}, storageErr("load market", err)
	}
	if market.Status == types.MarketStatusResolved {
		return TradeResult{}, errf(KindMarketClosed, "market already resolved")
	}

	var user *model.User
	if userID == "" {
		if !s.cfg.AllowAnonymous {
			return TradeResult{}, errf(KindUnauthorized, "anonymous trades are disabled")
		}
	} else {
		u, err := s.store.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return TradeResult{}, errf(KindNotFound, "user not found")
		}
		if err != nil {
			return TradeResult{}, storageErr("load user", err)
		}
		user = &u
	}

	if !req.Side.Valid() {
		return TradeResult{}, errf(KindInvalidInput, "side must be yes or no")
	}

	delta, cost, err := s.sizeTrade(market, req)
	if err != nil {
		return TradeResult{}, err
	}
	costDec := decimal.NewFromFloat(cost).Round(costPrecision)

	if user != nil {
		spent, err := s.store.SumTradeCost(ctx, marketID, user.ID)
		if err != nil {
			return TradeResult{}, storageErr("sum trade cost", err)
		}
		if spent.Add(costDec).GreaterThan(s.cfg.MaxCostPerMarket) {
			return TradeResult{}, errf(KindLimitExceeded,
				"maximum $%s per market per user, already spent $%s",
				s.cfg.MaxCostPerMarket.String(), spent.StringFixed(2))
		}
		if user.Balance.LessThan(costDec) {
			return TradeResult{}, errf(KindInsufficientBalance,
				"insufficient balance: have $%s, need $%s",
				user.Balance.StringFixed(2), costDec.StringFixed(2))
		}
	}

	// Apply. The market write goes first; later failures roll it back so a
	// trade is never half-recorded.
	preMarket := market
	if req.Side == types.SideYes {
		market.QYes += delta
	} else {
		market.QNo += delta
	}
	if err := s.store.UpsertMarket(ctx, market); err != nil {
		return TradeResult{}, storageErr("persist market", err)
	}

	if user != nil {
		preUser := *user
		user.Balance = user.Balance.Sub(costDec)
		pos := user.Position(marketID)
		if req.Side == types.SideYes {
			pos.YesShares += delta
		} else {
			pos.NoShares += delta
		}
		user.SetPosition(marketID, pos)
		if err := s.store.UpsertUser(ctx, *user); err != nil {
			s.rollbackMarket(ctx, preMarket)
			return TradeResult{}, storageErr("persist user", err)
		}
		defer func() {
			if err != nil {
				s.rollbackUser(ctx, preUser)
			}
		}()
	}

	trade := model.Trade{
		ID:        uuid.NewString(),
		MarketID:  market.ID,
		UserID:    userID,
		Cost:      costDec,
		CreatedAt: time.Now().UTC(),
	}
	if req.Side == types.SideYes {
		trade.DeltaYes = delta
	} else {
		trade.DeltaNo = delta
	}
	if err = s.store.AppendTrade(ctx, trade); err != nil {
		s.rollbackMarket(ctx, preMarket)
		return TradeResult{}, storageErr("append trade", err)
	}

	log.Info().
		Str("market_id", market.ID).
		Str("user_id", userID).
		Str("side", string(req.Side)).
		Float64("delta", delta).
		Str("cost", costDec.String()).
		Msg("trade executed")

	s.publish(marketfeed.Event{Type: marketfeed.EventTypeTrade, MarketID: market.ID, Data: tradeEvent{
		Side:     req.Side,
		Delta:    delta,
		Cost:     costDec,
		PriceYes: lmsr.PriceYes(market.QYes, market.QNo, market.B),
		PriceNo:  lmsr.PriceNo(market.QYes, market.QNo, market.B),
	}})

	return TradeResult{Trade: trade, Market: market, User: user}, nil
}

// sizeTrade turns the request into a concrete (delta, cost) pair, enforcing
// the per-trade share cap and the per-market cash cap. For cash requests the
// cost is recomputed from the solved quantity; the solver output is an
// approximation and the requested cash is never charged directly.
func (s *Service) sizeTrade(market model.Market, req TradeRequest) (float64, float64, error) {
	switch {
	case req.ShareDelta != nil && req.CashAmount != nil:
		return 0, 0, errf(KindInvalidInput, "provide share_delta or cash_amount, not both")
	case req.ShareDelta != nil:
		delta := *req.ShareDelta
		if delta <= 0 {
			return 0, 0, errf(KindInvalidInput, "share quantity must be positive")
		}
		if delta > s.cfg.MaxSharesPerTrade {
			return 0, 0, errf(KindLimitExceeded, "maximum %g shares per trade", s.cfg.MaxSharesPerTrade)
		}
		return delta, lmsr.CostToBuy(market.QYes, market.QNo, delta, market.B, req.Side), nil
	case req.CashAmount != nil:
		cash := *req.CashAmount
		if cash <= 0 {
			return 0, 0, errf(KindInvalidInput, "cash amount must be positive")
		}
		if decimal.NewFromFloat(cash).GreaterThan(s.cfg.MaxCostPerMarket) {
			return 0, 0, errf(KindLimitExceeded, "maximum $%s per market", s.cfg.MaxCostPerMarket.String())
		}
		delta := lmsr.FindQuantityForExactCost(market.QYes, market.QNo, cash, market.B, req.Side)
		return delta, lmsr.CostToBuy(market.QYes, market.QNo, delta, market.B, req.Side), nil
	default:
		return 0, 0, errf(KindInvalidInput, "provide share_delta or cash_amount")
	}
}

// CreateMarket opens a new market with zero outstanding shares. A zero
// liquidity parameter falls back to the default; negative values are invalid.
func (s *Service) CreateMarket(ctx context.Context, title, description string, b float64) (model.Market, error) {
	if title == "" {
		return model.Market{}, errf(KindInvalidInput, "title required")
	}
	if b < 0 {
		return model.Market{}, errf(KindInvalidInput, "liquidity parameter must be positive")
	}
	if b == 0 {
		b = lmsr.DefaultLiquidity
	}
	market := model.Market{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		B:           b,
		Status:      types.MarketStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.UpsertMarket(ctx, market); err != nil {
		return model.Market{}, storageErr("persist market", err)
	}
	log.Info().Str("market_id", market.ID).Str("title", title).Float64("b", b).Msg("market created")
	return market, nil
}

// Markets lists all markets, open and resolved.
func (s *Service) Markets(ctx context.Context) ([]model.Market, error) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, storageErr("list markets", err)
	}
	return markets, nil
}

func (s *Service) Market(ctx context.Context, marketID string) (model.Market, error) {
	market, err := s.store.GetMarket(ctx, marketID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Market{}, errf(KindNotFound, "market not found")
	}
	if err != nil {
		return model.Market{}, storageErr("load market", err)
	}
	return market, nil
}

type PriceQuote struct {
	PriceYes float64 `json:"price_yes"`
	PriceNo  float64 `json:"price_no"`
}

// Price returns the instantaneous LMSR prices for both sides.
func (s *Service) Price(ctx context.Context, marketID string) (PriceQuote, error) {
	market, err := s.Market(ctx, marketID)
	if err != nil {
		return PriceQuote{}, err
	}
	return PriceQuote{
		PriceYes: lmsr.PriceYes(market.QYes, market.QNo, market.B),
		PriceNo:  lmsr.PriceNo(market.QYes, market.QNo, market.B),
	}, nil
}

type Allowance struct {
	Remaining decimal.Decimal `json:"remaining_allowance"`
	Spent     decimal.Decimal `json:"spent"`
	Limit     decimal.Decimal `json:"limit"`
}

// Allowance reports how much cash the user may still spend on the market
// before hitting the per-market cap.
func (s *Service) Allowance(ctx context.Context, marketID, userID string) (Allowance, error) {
	if _, err := s.Market(ctx, marketID); err != nil {
		return Allowance{}, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Allowance{}, errf(KindNotFound, "user not found")
		}
		return Allowance{}, storageErr("load user", err)
	}
	spent, err := s.store.SumTradeCost(ctx, marketID, userID)
	if err != nil {
		return Allowance{}, storageErr("sum trade cost", err)
	}
	remaining := s.cfg.MaxCostPerMarket.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Allowance{Remaining: remaining, Spent: spent, Limit: s.cfg.MaxCostPerMarket}, nil
}

// Trades returns the market's ledger, oldest first.
func (s *Service) Trades(ctx context.Context, marketID string) ([]model.Trade, error) {
	if _, err := s.Market(ctx, marketID); err != nil {
		return nil, err
	}
	trades, err := s.store.ListTrades(ctx, marketID, "")
	if err != nil {
		return nil, storageErr("list trades", err)
	}
	return trades, nil
}

type tradeEvent struct {
	Side     types.Side      `json:"side"`
	Delta    float64         `json:"delta"`
	Cost     decimal.Decimal `json:"cost"`
	PriceYes float64         `json:"price_yes"`
	PriceNo  float64         `json:"price_no"`
}

func (s *Service) publish(evt marketfeed.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}

func (s *Service) rollbackMarket(ctx context.Context, m model.Market) {
	if err := s.store.UpsertMarket(ctx, m); err != nil {
		log.Error().Err(err).Str("market_id", m.ID).Msg("rollback of market state failed")
	}
}

func (s *Service) rollbackUser(ctx context.Context, u model.User) {
	if err := s.store.UpsertUser(ctx, u); err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("rollback of user state failed")
	}
}
