package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"predictmarket/internal/model"
)

// MemoryStore keeps all records in process memory. When constructed with a
// snapshot path it persists the full state to a JSON file after every write,
// which is enough durability for development and single-node deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	path     string
	markets  map[string]model.Market
	users    map[string]model.User
	trades   []model.Trade
	byNameID map[string]string
}

type snapshot struct {
	Markets []model.Market `json:"markets"`
	Users   []model.User   `json:"users"`
	Trades  []model.Trade  `json:"trades"`
}

// NewMemoryStore returns an empty volatile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:  make(map[string]model.Market),
		users:    make(map[string]model.User),
		byNameID: make(map[string]string),
	}
}

// NewFileStore returns a store backed by a JSON snapshot at path, loading
// existing state if the file is present.
func NewFileStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.path = path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, s.save()
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	for _, m := range snap.Markets {
		s.markets[m.ID] = m
	}
	for _, u := range snap.Users {
		s.users[u.ID] = u
		s.byNameID[u.Username] = u.ID
	}
	s.trades = snap.Trades
	log.Info().Str("path", path).Int("markets", len(s.markets)).Int("users", len(s.users)).Msg("store snapshot loaded")
	return s, nil
}

// save writes the snapshot file. Caller must hold mu.
func (s *MemoryStore) save() error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{Trades: s.trades}
	for _, m := range s.markets {
		snap.Markets = append(snap.Markets, m)
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, u)
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *MemoryStore) GetMarket(ctx context.Context, id string) (model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return model.Market{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) UpsertMarket(ctx context.Context, m model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return s.save()
}

func (s *MemoryStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNameID[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
	s.byNameID[u.Username] = u.ID
	return s.save()
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) AppendTrade(ctx context.Context, t model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return s.save()
}

func (s *MemoryStore) ListTrades(ctx context.Context, marketID, userID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Trade
	for _, t := range s.trades {
		if marketID != "" && t.MarketID != marketID {
			continue
		}
		if userID != "" && t.UserID != userID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) SumTradeCost(ctx context.Context, marketID, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range s.trades {
		if t.MarketID != marketID {
			continue
		}
		if userID != "" && t.UserID != userID {
			continue
		}
		sum = sum.Add(t.Cost)
	}
	return sum, nil
}

// cloneUser deep-copies the positions map so callers can mutate their copy
// without racing readers of the stored one.
func cloneUser(u model.User) model.User {
	if u.Positions == nil {
		return u
	}
	positions := make(map[string]model.Position, len(u.Positions))
	for k, v := range u.Positions {
		positions[k] = v
	}
	u.Positions = positions
	return u
}
