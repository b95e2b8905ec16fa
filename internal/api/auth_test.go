package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator_IssueAndValidateRoundTrip(t *testing.T) {
	auth := NewJWTAuthenticator("test-secret")

	token, err := auth.IssueToken("tenant-1", time.Hour)
	require.NoError(t, err)

	tenantID, err := auth.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", tenantID)
}

func TestJWTAuthenticator_RejectsExpiredToken(t *testing.T) {
	auth := NewJWTAuthenticator("test-secret")

	token, err := auth.IssueToken("tenant-1", -time.Minute)
	require.NoError(t, err)

	_, err = auth.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTAuthenticator_RejectsForeignSecret(t *testing.T) {
	issuer := NewJWTAuthenticator("secret-a")
	verifier := NewJWTAuthenticator("secret-b")

	token, err := issuer.IssueToken("tenant-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware_RejectsMissingBearerToken(t *testing.T) {
	auth := NewJWTAuthenticator("test-secret")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	authMiddleware(auth)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	auth := NewJWTAuthenticator("test-secret")
	token, err := auth.IssueToken("tenant-1", time.Hour)
	require.NoError(t, err)

	var gotTenant string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant, _ = authenticatedTenant(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	authMiddleware(auth)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tenant-1", gotTenant)
}
