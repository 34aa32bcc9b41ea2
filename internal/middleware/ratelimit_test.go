package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_DisabledGeneral(t *testing.T) {
	handler := NewRateLimitMiddleware(-1, 1).Handler(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_StrictPaths(t *testing.T) {
	handler := NewRateLimitMiddleware(-1, 1).Handler(okHandler())

	for _, path := range []string{"/api/v1/auth/login", "/api/v1/contact"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			req.Header.Set("X-Forwarded-For", path)

			first := httptest.NewRecorder()
			handler.ServeHTTP(first, req)
			assert.Equal(t, http.StatusOK, first.Code)

			second := httptest.NewRecorder()
			handler.ServeHTTP(second, req)
			assert.Equal(t, http.StatusTooManyRequests, second.Code)
			assert.Equal(t, "60", second.Header().Get("Retry-After"))
			assert.Contains(t, second.Body.String(), "RATE_LIMITED")
		})
	}
}

func TestRateLimitMiddleware_ExemptsHealth(t *testing.T) {
	handler := NewRateLimitMiddleware(1, 1).Handler(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	mw := NewRateLimitMiddleware(0, 0)
	assert.Equal(t, 100, mw.generalRPM)
	assert.Equal(t, 10, mw.strictRPM)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "remote addr", remote: "192.0.2.7:5555", want: "192.0.2.7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}
