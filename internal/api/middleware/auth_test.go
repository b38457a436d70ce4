package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepool/ridepool/internal/api/middleware"
	"github.com/ridepool/ridepool/internal/auth"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.ridepool.app",
		Audience:   "ridepool-api",
	})
}

func TestAuth_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token, _, err := svc.GenerateAccessToken("usr_123", auth.RoleRider)
	require.NoError(t, err)

	var gotID, gotRole string
	handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = middleware.GetUserID(r.Context())
		gotRole = middleware.GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/trips/trp_1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr_123", gotID)
	assert.Equal(t, auth.RoleRider, gotRole)
}

func TestAuth_RejectsBadHeaders(t *testing.T) {
	svc := newTestJWTService()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/trips/trp_1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestAuth_RejectsTokenSignedWithOtherKey(t *testing.T) {
	other := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "different-key",
		Issuer:     "https://api.ridepool.app",
		Audience:   "ridepool-api",
	})
	token, _, err := other.GenerateAccessToken("usr_123", auth.RoleRider)
	require.NoError(t, err)

	handler := middleware.Auth(newTestJWTService())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/trips/trp_1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
