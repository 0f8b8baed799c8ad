package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"predictmarket/internal/lmsr"
	"predictmarket/internal/model"
	"predictmarket/internal/store"
	"predictmarket/internal/types"
)

func TestSeedMarketsDefaultsSparseEntries(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	st := store.NewMemoryStore()

	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `[
		{"id": "m1", "title": "Will it rain tomorrow?"},
		{"id": "m2", "title": "Closed one", "b": 25, "status": "resolved", "result": "YES"}
	]`
	is.NoErr(os.WriteFile(path, []byte(seed), 0o644))

	is.NoErr(seedMarkets(ctx, st, path))

	m1, err := st.GetMarket(ctx, "m1")
	is.NoErr(err)
	is.Equal(m1.B, lmsr.DefaultLiquidity)
	is.Equal(m1.Status, types.MarketStatusOpen)
	p := lmsr.PriceYes(m1.QYes, m1.QNo, m1.B)
	is.Equal(p, 0.5)

	// Explicit values survive untouched.
	m2, err := st.GetMarket(ctx, "m2")
	is.NoErr(err)
	is.Equal(m2.B, 25.0)
	is.Equal(m2.Status, types.MarketStatusResolved)
}

func TestSeedMarketsSkipsNonEmptyStore(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	st := store.NewMemoryStore()

	path := filepath.Join(t.TempDir(), "seed.json")
	is.NoErr(os.WriteFile(path, []byte(`[{"id": "m1", "title": "New"}]`), 0o644))

	existing := model.Market{ID: "m0", Title: "Existing", B: 10, Status: types.MarketStatusOpen, CreatedAt: time.Now().UTC()}
	is.NoErr(st.UpsertMarket(ctx, existing))

	is.NoErr(seedMarkets(ctx, st, path))

	_, err := st.GetMarket(ctx, "m1")
	is.Equal(err, store.ErrNotFound)
}
