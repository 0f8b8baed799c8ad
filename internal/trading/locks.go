package trading

import "sync"

// marketLocks serializes all validate-then-apply sequences that touch one
// market's quantities or its holders' balances. Trades and settlement on the
// same market take the same lock; operations on different markets proceed in
// parallel. Locks are never released from the map; markets are never deleted
// and the per-entry footprint is a single mutex.
type marketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMarketLocks() *marketLocks {
	return &marketLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *marketLocks) get(marketID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[marketID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[marketID] = m
	}
	return m
}
