package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"gate-ticketing/internal/logger"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	userEmailKey contextKey = "user_email"
)

// Verifier authenticates bearer tokens against the OIDC issuer. Verified
// tokens are cached so a busy scanning station does not re-run the full
// JWKS verification on every request.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
	cache    *Cache
	logger   *logger.Logger
}

func NewVerifier(ctx context.Context, issuer string, cache *Cache, log *logger.Logger) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	// SkipClientIDCheck: tokens come from several frontend clients.
	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return &Verifier{verifier: verifier, cache: cache, logger: log}, nil
}

// Middleware rejects requests without a valid bearer token and puts the
// caller's subject and email into the request context.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Expect "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			rawToken := parts[1]

			if v.cache != nil {
				if claims, ok := v.cache.Get(r.Context(), rawToken); ok {
					ctx := withClaims(r.Context(), claims.Sub, claims.Email)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			idToken, err := v.verifier.Verify(r.Context(), rawToken)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			var claims struct {
				Sub   string `json:"sub"`
				Email string `json:"email"`
			}
			if err := idToken.Claims(&claims); err != nil {
				http.Error(w, "failed to parse claims", http.StatusUnauthorized)
				return
			}

			if v.cache != nil {
				if err := v.cache.Put(r.Context(), rawToken, CachedClaims{Sub: claims.Sub, Email: claims.Email}); err != nil {
					v.logger.Warn("AUTH", fmt.Sprintf("Failed to cache verified token: %v", err))
				}
			}

			ctx := withClaims(r.Context(), claims.Sub, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withClaims(ctx context.Context, sub, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, sub)
	return context.WithValue(ctx, userEmailKey, email)
}

// UserID returns the authenticated subject, or "" for unauthenticated
// requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// UserEmail returns the authenticated caller's email claim, if present.
func UserEmail(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}
