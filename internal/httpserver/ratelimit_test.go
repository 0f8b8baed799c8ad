package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

func TestRateLimiterBurstExhaustion(t *testing.T) {
	is := is.New(t)
	rl := NewRateLimiter(0, 3)

	for i := 0; i < 3; i++ {
		is.True(rl.allow("1.2.3.4"))
	}
	is.True(!rl.allow("1.2.3.4"))

	// Other clients keep their own bucket.
	is.True(rl.allow("5.6.7.8"))
}

func TestRateLimitMiddleware(t *testing.T) {
	is := is.New(t)
	rl := NewRateLimiter(0, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/markets", nil)
	req.RemoteAddr = "10.0.0.1:53412"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	is.Equal(rec.Code, http.StatusNoContent)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	is.Equal(rec.Code, http.StatusTooManyRequests)

	// The port must not distinguish clients.
	req2 := httptest.NewRequest(http.MethodGet, "/v1/markets", nil)
	req2.RemoteAddr = "10.0.0.1:61000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req2)
	is.Equal(rec.Code, http.StatusTooManyRequests)
}
