package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteflow/noteflow/internal/adapter/memstore"
	"github.com/noteflow/noteflow/internal/service/jwt"
	"github.com/noteflow/noteflow/internal/service/logger"
	"github.com/noteflow/noteflow/internal/service/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewService(memstore.New(), ratelimit.Config{Enabled: true, Capacity: 2, Window: time.Minute}, logger.NewNop())
	handler := rateLimitMiddleware(limiter)(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/notes", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("1.2.3.4").Code)
	assert.Equal(t, http.StatusOK, send("1.2.3.4").Code)

	rec := send("1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Another client still has budget.
	assert.Equal(t, http.StatusOK, send("5.6.7.8").Code)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewService("test-secret", time.Minute)

	var gotUserID string
	handler := authMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/notes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("GET", "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := tokens.GenerateAccessToken(jwt.Claims{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUserID)
}

func TestCorrelationMiddleware(t *testing.T) {
	handler := correlationMiddleware(okHandler())

	// A supplied correlation id is echoed back.
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(CorrelationIDHeader, "cid-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "cid-123", rec.Header().Get(CorrelationIDHeader))

	// A missing one is generated.
	req = httptest.NewRequest("GET", "/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/notes", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"x-forwarded-for single", map[string]string{"X-Forwarded-For": "9.9.9.9"}, "1.1.1.1:1234", "9.9.9.9"},
		{"x-forwarded-for chain", map[string]string{"X-Forwarded-For": "9.9.9.9, 8.8.8.8"}, "1.1.1.1:1234", "9.9.9.9"},
		{"x-real-ip", map[string]string{"X-Real-IP": "7.7.7.7"}, "1.1.1.1:1234", "7.7.7.7"},
		{"remote addr", nil, "1.1.1.1:1234", "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestRouterChatRouteWinsOverNoteID(t *testing.T) {
	// /api/notes/chat must never be swallowed by /api/notes/{id}: chat
	// routes register before note routes.
	router := mux.NewRouter()
	router.HandleFunc("/api/notes/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods("POST")
	router.HandleFunc("/api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/notes/chat", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
