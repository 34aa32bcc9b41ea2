package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/model"
	"marketing-backend/pkg/apierror"
)

type stubValidator struct {
	claims *model.AuthClaims
	err    error
}

func (v stubValidator) ValidateAccessToken(string) (*model.AuthClaims, error) {
	return v.claims, v.err
}

func TestRequireAuth(t *testing.T) {
	employee := &model.AuthClaims{PrincipalID: "p1", Role: model.RoleEmployee}

	tests := []struct {
		name     string
		header   string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized, wantBody: "UNAUTHORIZED"},
		{name: "wrong scheme", header: "Basic abc", wantCode: http.StatusUnauthorized, wantBody: "UNAUTHORIZED"},
		{name: "expired", header: "Bearer t", err: apierror.Wrap(model.ErrTokenExpired, "TOKEN_EXPIRED", "expired", "", 401), wantCode: http.StatusUnauthorized, wantBody: "TOKEN_EXPIRED"},
		{name: "invalid", header: "Bearer t", err: model.ErrInvalidToken, wantCode: http.StatusUnauthorized, wantBody: "INVALID_TOKEN"},
		{name: "valid", header: "bearer t", wantCode: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen *model.AuthClaims
			mw := NewAuthMiddleware(stubValidator{claims: employee, err: tc.err})
			handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tc.wantBody)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, "p1", seen.PrincipalID)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{})
	handler := mw.RequireRoles(model.RoleAdmin, model.RoleManager)(okHandler())

	tests := []struct {
		name     string
		claims   *model.AuthClaims
		wantCode int
	}{
		{name: "anonymous", wantCode: http.StatusUnauthorized},
		{name: "employee", claims: &model.AuthClaims{Role: model.RoleEmployee}, wantCode: http.StatusForbidden},
		{name: "manager", claims: &model.AuthClaims{Role: model.RoleManager}, wantCode: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/contact", nil)
			if tc.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tc.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusForbidden {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"code":"INSUFFICIENT_PERMISSIONS"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	claims := &model.AuthClaims{PrincipalID: "p1", Role: model.RoleAdmin}

	for name, tc := range map[string]struct {
		validator stubValidator
		header    string
		wantSeen  bool
	}{
		"anonymous":     {validator: stubValidator{claims: claims}, wantSeen: false},
		"valid token":   {validator: stubValidator{claims: claims}, header: "Bearer t", wantSeen: true},
		"invalid token": {validator: stubValidator{err: model.ErrInvalidToken}, header: "Bearer t", wantSeen: false},
	} {
		t.Run(name, func(t *testing.T) {
			var seen bool
			handler := NewAuthMiddleware(tc.validator).OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, seen = ClaimsFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.wantSeen, seen)
		})
	}
}

func TestSecurityHeadersAndRecovery(t *testing.T) {
	handler := SecurityHeaders(Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestQueryToken(t *testing.T) {
	var seen string
	h := QueryToken("access_token")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws?access_token=abc", nil))
	assert.Equal(t, "Bearer abc", seen)

	req := httptest.NewRequest(http.MethodGet, "/ws?access_token=abc", nil)
	req.Header.Set("Authorization", "Bearer header")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "Bearer header", seen)
}
