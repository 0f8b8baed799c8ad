package health

import (
	"context"
	"net/http"
	"time"

	"predictmarket/internal/httputil"
)

// Pinger is implemented by stores that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	startedAt time.Time
	pinger    Pinger
}

// NewHandler builds the health endpoint. pinger may be nil for stores without
// a connectivity check.
func NewHandler(startedAt time.Time, pinger Pinger) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{startedAt: start, pinger: pinger}
}

type statusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Store     string `json:"store"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	resp := statusResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(now.Sub(h.startedAt).Seconds()),
		Store:     "ok",
	}
	code := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, code, resp)
}
