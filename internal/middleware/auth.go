// Package middleware provides the HTTP middleware for the reference host:
// authentication, rate limiting, and request ids.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"sqlzibar/internal/domain"
)

// HashAPIKey returns the hex SHA-256 of a key. ServiceAccounts.TokenHash
// stores this encoding; the engine never sees the key itself.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// resolvePrincipal maps request credentials to a principal id. Bearer JWTs
// are tried against each validator in order; the token subject is matched
// against Principals.ExternalRef and falls back to being used as a principal
// id directly, which keeps dev tokens simple. If no JWT matches and an API
// key header is configured, the key's hash is matched against service
// accounts.
func resolvePrincipal(r *http.Request, validators []JWTValidator, principals domain.PrincipalRepository, apiKeyHeader string) (string, bool) {
	ctx := r.Context()

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		for _, v := range validators {
			claims, err := v.Validate(ctx, tokenStr)
			if err != nil || claims.Subject == "" {
				continue
			}
			if p, err := principals.GetByExternalRef(ctx, claims.Subject); err == nil {
				return p.ID, true
			}
			return claims.Subject, true
		}
	}

	if apiKeyHeader != "" {
		if key := r.Header.Get(apiKeyHeader); key != "" {
			if sa, err := principals.GetServiceAccountByTokenHash(ctx, HashAPIKey(key)); err == nil {
				return sa.PrincipalID, true
			}
		}
	}

	return "", false
}

// Authenticate resolves the caller to a principal id and stores it in the
// request context. Requests with no usable credential get a 401.
func Authenticate(validators []JWTValidator, principals domain.PrincipalRepository, apiKeyHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := resolvePrincipal(r, validators, principals, apiKeyHeader)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"kind":    "UNAUTHENTICATED",
						"message": "provide a valid bearer token or API key",
					},
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), id)))
		})
	}
}

// AuthenticateOptional resolves credentials when present but lets anonymous
// requests through. The dashboard uses it: its own gate decides what an
// anonymous caller may see.
func AuthenticateOptional(validators []JWTValidator, principals domain.PrincipalRepository, apiKeyHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := resolvePrincipal(r, validators, principals, apiKeyHeader); ok {
				r = r.WithContext(domain.WithPrincipal(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
