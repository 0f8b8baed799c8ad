package model

import (
	"time"

	"github.com/shopspring/decimal"

	"predictmarket/internal/types"
)

// Market is a binary-outcome market priced by the LMSR engine. QYes and QNo
// are the outstanding share quantities per side; B is the liquidity parameter,
// fixed for the lifetime of the market.
type Market struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	QYes        float64            `json:"q_yes"`
	QNo         float64            `json:"q_no"`
	B           float64            `json:"b"`
	Status      types.MarketStatus `json:"status"`
	Result      types.Outcome      `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Position holds a user's share counts on one market. Shares only grow while
// the market is open; there is no sell path.
type Position struct {
	YesShares float64 `json:"yes_shares"`
	NoShares  float64 `json:"no_shares"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// PasswordHash is persisted by the stores but must never reach API
	// responses; handlers return UserSummary instead of User.
	PasswordHash string              `json:"password_hash,omitempty"`
	Balance      decimal.Decimal     `json:"balance"`
	Positions    map[string]Position `json:"positions"`
	IsAdmin      bool                `json:"is_admin"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Position returns the user's position on a market, zero-valued if absent.
func (u *User) Position(marketID string) Position {
	if u.Positions == nil {
		return Position{}
	}
	return u.Positions[marketID]
}

// SetPosition records a position, allocating the map on first use.
func (u *User) SetPosition(marketID string, p Position) {
	if u.Positions == nil {
		u.Positions = make(map[string]Position)
	}
	u.Positions[marketID] = p
}

// UserSummary is the API-safe projection of a User.
type UserSummary struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	IsAdmin  bool            `json:"is_admin"`
}

// Summary strips credentials and positions for API responses.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Balance: u.Balance, IsAdmin: u.IsAdmin}
}

// Trade is an immutable ledger entry. Exactly one of DeltaYes/DeltaNo is
// positive, the other zero. Cost is rounded to six decimal places.
type Trade struct {
	ID        string          `json:"id"`
	MarketID  string          `json:"market_id"`
	UserID    string          `json:"user_id,omitempty"`
	DeltaYes  float64         `json:"delta_yes"`
	DeltaNo   float64         `json:"delta_no"`
	Cost      decimal.Decimal `json:"cost"`
	CreatedAt time.Time       `json:"created_at"`
}

// Side reports which side of the market the trade bought.
func (t Trade) Side() types.Side {
	if t.DeltaNo > 0 {
		return types.SideNo
	}
	return types.SideYes
}
