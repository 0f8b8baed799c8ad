package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	StoreFile       string
	SeedFile        string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	WebSocketOrigin string
	LogPretty       bool

	MaxSharesPerTrade float64
	MaxCostPerMarket  decimal.Decimal
	InitialBalance    decimal.Decimal
	AllowAnonymous    bool
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}

	// DB_DSN selects the postgres store; without it state lives in memory,
	// optionally snapshotted to STORE_FILE.
	c.DBDSN = os.Getenv("DB_DSN")
	c.StoreFile = os.Getenv("STORE_FILE")
	c.SeedFile = os.Getenv("SEED_FILE")
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")

	logPretty := os.Getenv("LOG_PRETTY")
	if logPretty != "" {
		b, err := strconv.ParseBool(logPretty)
		if err != nil {
			return c, errors.New("invalid LOG_PRETTY")
		}
		c.LogPretty = b
	}

	c.MaxSharesPerTrade = 10
	if raw := os.Getenv("MAX_SHARES_PER_TRADE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return c, errors.New("invalid MAX_SHARES_PER_TRADE")
		}
		c.MaxSharesPerTrade = v
	}

	var err error
	c.MaxCostPerMarket, err = decimalEnv("MAX_COST_PER_MARKET", "100")
	if err != nil {
		return c, err
	}
	c.InitialBalance, err = decimalEnv("INITIAL_BALANCE", "1000")
	if err != nil {
		return c, err
	}

	c.AllowAnonymous = true
	if raw := os.Getenv("ALLOW_ANONYMOUS_TRADES"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return c, errors.New("invalid ALLOW_ANONYMOUS_TRADES")
		}
		c.AllowAnonymous = b
	}

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func decimalEnv(name, fallback string) (decimal.Decimal, error) {
	raw := os.Getenv(name)
	if raw == "" {
		raw = fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New("invalid " + name)
	}
	if !v.IsPositive() {
		return decimal.Zero, errors.New(name + " must be positive")
	}
	return v, nil
}
