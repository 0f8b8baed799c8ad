package trading

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"predictmarket/internal/httputil"
	"predictmarket/internal/model"
	"predictmarket/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// statusForKind maps engine error kinds to HTTP statuses.
func statusForKind(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteJSON(w, statusForKind(KindOf(err)), httputil.ErrorResponse{Error: err.Error()})
}

type createMarketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	B           float64 `json:"b"`
}

func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	market, err := h.svc.CreateMarket(r.Context(), req.Title, req.Description, req.B)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, market)
}

func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.svc.Markets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, markets)
}

func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := h.svc.Market(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, market)
}

func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	quote, err := h.svc.Price(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}

func (h *Handler) Trades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.Trades(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	httputil.WriteJSON(w, http.StatusOK, trades)
}

func (h *Handler) Allowance(w http.ResponseWriter, r *http.Request, userID string) {
	allowance, err := h.svc.Allowance(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, allowance)
}

type buyRequest struct {
	Side       types.Side `json:"side"`
	ShareDelta *float64   `json:"share_delta,omitempty"`
	CashAmount *float64   `json:"cash_amount,omitempty"`
}

type buyResponse struct {
	Trade  model.Trade        `json:"trade"`
	Market model.Market       `json:"market"`
	User   *model.UserSummary `json:"user,omitempty"`
}

// Buy executes a trade. userID is empty for anonymous callers.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request, userID string) {
	var req buyRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Side == "" {
		req.Side = types.SideYes
	}
	res, err := h.svc.ExecuteTrade(r.Context(), chi.URLParam(r, "id"), userID, TradeRequest{
		Side:       req.Side,
		ShareDelta: req.ShareDelta,
		CashAmount: req.CashAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := buyResponse{Trade: res.Trade, Market: res.Market}
	if res.User != nil {
		summary := res.User.Summary()
		resp.User = &summary
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	Outcome types.Outcome `json:"outcome"`
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request, userID string) {
	var req resolveRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.ResolveMarket(r.Context(), chi.URLParam(r, "id"), userID, req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Scoreboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"scoreboard": board})
}

type portfolioResponse struct {
	User      model.UserSummary `json:"user"`
	Positions []PortfolioEntry  `json:"positions"`
}

func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request, userID string) {
	user, entries, err := h.svc.Portfolio(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, portfolioResponse{User: user, Positions: entries})
}
