package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"predictmarket/internal/auth"
	"predictmarket/internal/config"
	"predictmarket/internal/health"
	"predictmarket/internal/httpserver"
	"predictmarket/internal/lmsr"
	"predictmarket/internal/marketfeed"
	"predictmarket/internal/model"
	"predictmarket/internal/store"
	"predictmarket/internal/store/postgres"
	"predictmarket/internal/trading"
	"predictmarket/internal/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := context.Background()
	startedAt := time.Now().UTC()

	var st store.Store
	var pinger health.Pinger
	switch {
	case cfg.DBDSN != "":
		pg, err := postgres.New(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres store")
		}
		defer pg.Close()
		st = pg
		pinger = pg
		log.Info().Msg("using postgres store")
	case cfg.StoreFile != "":
		fs, err := store.NewFileStore(cfg.StoreFile)
		if err != nil {
			log.Fatal().Err(err).Msg("file store")
		}
		st = fs
		log.Info().Str("path", cfg.StoreFile).Msg("using file-backed store")
	default:
		st = store.NewMemoryStore()
		log.Warn().Msg("using volatile in-memory store")
	}

	if cfg.SeedFile != "" {
		if err := seedMarkets(ctx, st, cfg.SeedFile); err != nil {
			log.Fatal().Err(err).Msg("seed markets")
		}
	}

	bus := marketfeed.NewBus()
	tradingSvc := trading.NewService(st, trading.Config{
		MaxSharesPerTrade: cfg.MaxSharesPerTrade,
		MaxCostPerMarket:  cfg.MaxCostPerMarket,
		AllowAnonymous:    cfg.AllowAnonymous,
	}, bus)
	authSvc := auth.NewService(st, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, cfg.InitialBalance)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:    auth.NewHandler(authSvc),
		TradingHandler: trading.NewHandler(tradingSvc),
		HealthHandler:  health.NewHandler(startedAt, pinger),
		AuthService:    authSvc,
		FeedHandler:    marketfeed.NewWSHandler(bus, cfg.WebSocketOrigin),
		CORSOrigin:     cfg.WebSocketOrigin,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server")
	}
}

// seedMarkets loads markets from a JSON file into an empty store. Markets
// already present win; the seed never overwrites live state.
func seedMarkets(ctx context.Context, st store.Store, path string) error {
	existing, err := st.ListMarkets(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var markets []model.Market
	if err := json.Unmarshal(raw, &markets); err != nil {
		return err
	}
	for _, m := range markets {
		// Sparse seed entries get the same defaults CreateMarket applies.
		if m.B == 0 {
			m.B = lmsr.DefaultLiquidity
		}
		if m.Status == "" {
			m.Status = types.MarketStatusOpen
		}
		if err := st.UpsertMarket(ctx, m); err != nil {
			return err
		}
	}
	log.Info().Int("count", len(markets)).Str("path", path).Msg("seeded markets")
	return nil
}
