package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"predictmarket/internal/auth"
	"predictmarket/internal/health"
	"predictmarket/internal/httputil"
	"predictmarket/internal/trading"
)

type RouterDeps struct {
	AuthHandler    *auth.Handler
	TradingHandler *trading.Handler
	HealthHandler  *health.Handler
	AuthService    *auth.Service
	FeedHandler    http.Handler
	CORSOrigin     string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware(d.CORSOrigin))
	r.Use(SecurityHeaders)
	r.Use(NewRateLimiter(10, 30).Middleware)

	r.Get("/health", d.HealthHandler.Status)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/markets", d.TradingHandler.ListMarkets)
		r.Get("/markets/{id}", d.TradingHandler.GetMarket)
		r.Get("/markets/{id}/price", d.TradingHandler.Price)
		r.Get("/markets/{id}/trades", d.TradingHandler.Trades)
		r.Get("/scoreboard", d.TradingHandler.Scoreboard)
		if d.FeedHandler != nil {
			r.Get("/markets/ws", d.FeedHandler.ServeHTTP)
		}

		// Buying works with or without an identity; the engine decides
		// whether anonymous trades are allowed.
		r.With(WithOptionalAuth(d.AuthService)).Post("/markets/{id}/buy", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserID(r)
			d.TradingHandler.Buy(w, r, userID)
		})

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Post("/markets", d.TradingHandler.CreateMarket)
			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AuthHandler.Me(w, r, userID)
			})
			r.Get("/me/positions", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.TradingHandler.Portfolio(w, r, userID)
			})
			r.Get("/markets/{id}/allowance", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.TradingHandler.Allowance(w, r, userID)
			})
			r.Post("/admin/markets/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.TradingHandler.Resolve(w, r, userID)
			})
		})
	})

	return r
}

func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := origin
			if allowed == "" {
				allowed = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
