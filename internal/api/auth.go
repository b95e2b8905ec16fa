package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by JWTAuthenticator.Validate for any token that
// does not parse, fails signature verification, or has expired.
var ErrInvalidToken = errors.New("api: invalid bearer token")

// Claims is the payload this service expects on an inbound bearer JWT. Only
// Subject (the tenant id) is load-bearing; TenantID duplicates it for
// readability and is set alongside Subject by IssueToken. Validate reads
// Subject only.
type Claims struct {
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates the bearer JWT spec.md §6 requires on every
// route except health/token-issuance, grounded on the pack's
// haasonsaas-nexus/internal/auth.JWTService (HMAC secret, ParseWithClaims
// with an explicit signing-method check).
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator builds an authenticator around a shared HMAC secret.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Validate parses token and returns the tenant id carried in its subject.
func (a *JWTAuthenticator) Validate(token string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("api: authenticator has no secret configured")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

// IssueToken mints a bearer token for tenantID; expiry<=0 means the token
// never expires. NewRouter registers no token-issuance route, so tests are
// its only caller in this repository.
func (a *JWTAuthenticator) IssueToken(tenantID string, expiry time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("api: authenticator has no secret configured")
	}
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  tenantID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// authTenantKey carries the JWT-authenticated tenant id, separate from
// pathTenantKey so middleware can detect a token/path tenant mismatch.
type authTenantKey struct{}

// authMiddleware enforces the bearer JWT on every route it wraps (spec.md
// §6: "all routes except health and token-issuance"); callers mount it only
// on the authenticated subrouter.
func authMiddleware(auth *JWTAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrInvalidToken.Error()})
				return
			}
			tenantID, err := auth.Validate(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrInvalidToken.Error()})
				return
			}
			ctx := context.WithValue(r.Context(), authTenantKey{}, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticatedTenant(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(authTenantKey{}).(string)
	return v, ok
}
