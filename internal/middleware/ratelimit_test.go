package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimiter(t *testing.T, maxReqs, windowSec int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, "auth", maxReqs, windowSec), mr
}

func limited(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func refreshFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl, _ := setupRateLimiter(t, 5, 60)
	handler := limited(rl)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, refreshFrom("192.168.1.1:12345"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, mr := setupRateLimiter(t, 3, 60)
	handler := limited(rl)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, refreshFrom("10.0.0.1:12345"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, refreshFrom("10.0.0.1:12345"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"too many requests, try again later"}`, rec.Body.String())
	assert.True(t, mr.Exists("rendi:ratelimit:auth:10.0.0.1"))
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	rl, _ := setupRateLimiter(t, 2, 60)
	handler := limited(rl)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), refreshFrom("1.1.1.1:1"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, refreshFrom("2.2.2.2:1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_ForwardedClientIsCounted(t *testing.T) {
	rl, mr := setupRateLimiter(t, 1, 60)
	handler := limited(rl)

	req := refreshFrom("10.0.0.254:443")
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.254")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, mr.Exists("rendi:ratelimit:auth:203.0.113.7"))
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	rl, mr := setupRateLimiter(t, 1, 60)
	mr.Close()

	rec := httptest.NewRecorder()
	limited(rl).ServeHTTP(rec, refreshFrom("3.3.3.3:1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
