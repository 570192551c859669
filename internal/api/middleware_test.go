package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MikeSquared-Agency/Casting/internal/auth"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"))
}

func TestRateLimiterDropsIdleKeys(t *testing.T) {
	rl := newRateLimiter(5, time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for _, key := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, rl.allow(key))
	}
	assert.Equal(t, 3, rl.tracked())

	now = now.Add(30 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"))
	assert.Equal(t, 3, rl.tracked(), "keys inside the window are kept")

	now = now.Add(45 * time.Second)
	assert.True(t, rl.allow("10.0.0.4"))
	assert.Equal(t, 2, rl.tracked(), "only the active and the new key remain")
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(1)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req.RemoteAddr = "10.0.0.1:5678"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	unlimited := RateLimitMiddleware(0)(okHandler)
	for i := 0; i < 5; i++ {
		w = httptest.NewRecorder()
		unlimited.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://utopiax.kr"})(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"same origin", http.MethodGet, "", http.StatusOK, ""},
		{"allowed", http.MethodGet, "https://utopiax.kr", http.StatusOK, "https://utopiax.kr"},
		{"preflight", http.MethodOptions, "https://utopiax.kr", http.StatusNoContent, "https://utopiax.kr"},
		{"foreign", http.MethodGet, "https://evil.example", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	open := CORSMiddleware(nil)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := httptest.NewRecorder()
	open.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?token=q", nil)
	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", bearerToken(req))

	req = httptest.NewRequest(http.MethodGet, "/?token=q", nil)
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Upgrade", "websocket")
	assert.Equal(t, "q", bearerToken(req))
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	v := auth.NewVerifier(testSecret, time.Minute)
	id := uuid.New()
	tok, err := v.Issue(id, "m@test.kr", "artist", time.Hour)
	assert.NoError(t, err)

	var got *auth.Identity
	h := AuthMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if assert.NotNil(t, got) {
		assert.Equal(t, id, got.UserID)
		assert.Equal(t, "artist", got.Role)
		assert.Equal(t, "m@test.kr", got.Email)
	}
}
