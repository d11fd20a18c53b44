package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiterConfig(generalBurst, writeBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 補充をほぼ止めてバーストのみで検証
		GeneralBurst:    generalBurst,
		WriteRate:       rate.Limit(0.001),
		WriteBurst:      writeBurst,
		CleanupInterval: time.Hour,
	}
}

func doRequest(mw func(http.Handler) http.Handler, userID string) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), userID))
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_BurstExhaustionReturns429(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(2, 1))
	defer rl.Stop()
	mw := rl.GeneralMiddleware()

	for i := 0; i < 2; i++ {
		if code := doRequest(mw, "u1"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, code)
		}
	}
	if code := doRequest(mw, "u1"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}

	// 別ユーザーには影響しない。
	if code := doRequest(mw, "u2"); code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", code)
	}
}

// 書き込み制限はAPI全般の制限と独立にカウントされる。
func TestRateLimiter_WriteTierIsIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(10, 1))
	defer rl.Stop()

	if code := doRequest(rl.WriteMiddleware(), "u1"); code != http.StatusOK {
		t.Fatalf("first write status = %d", code)
	}
	if code := doRequest(rl.WriteMiddleware(), "u1"); code != http.StatusTooManyRequests {
		t.Errorf("second write status = %d, want 429", code)
	}
	if code := doRequest(rl.GeneralMiddleware(), "u1"); code != http.StatusOK {
		t.Errorf("general after write exhaustion = %d, want 200", code)
	}
}

func TestRateLimiter_MissingUserIDIs401(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rl.GeneralMiddleware()(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not be reached")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimiter_429IncludesRetryAfter(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	mw := rl.GeneralMiddleware()

	doRequest(mw, "u1")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "u1"))
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}
