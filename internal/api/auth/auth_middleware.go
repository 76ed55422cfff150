package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vozurbana/voz-urbana-api/app/observability/metrics"
	"github.com/vozurbana/voz-urbana-api/internal/api"
)

type contextKey string

const IdentityKey contextKey = "identity"

// publicRoutes is the fixed allow-list of unauthenticated paths, matched by
// EXACT path. Suffix matching would make any path ending in one of these
// segments public, so it is deliberately not used here. Docs, ping and
// metrics endpoints are mounted outside the gated router entirely.
var publicRoutes = map[string]struct{}{
	"/api/v1/auth/login":        {},
	"/api/v1/auth/register":     {},
	"/api/v1/auth/refresh":      {},
	"/api/v1/auth/oauth/google": {},
}

// Authenticate is the admission gate run once per inbound request. For a
// protected path it extracts the bearer token, validates it, resolves the
// subject against the credential store (one read, zero writes) and publishes
// the identity into the request context. It never issues tokens and never
// mutates business state.
func Authenticate(logger *slog.Logger, tokens *TokenService, repo Repository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			if _, isPublic := publicRoutes[r.URL.Path]; isPublic {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header", slog.String("path", r.URL.Path))
				reject(ctx, "missing_credentials")
				api.ErrorResponseFor(w, r, api.ErrMissingCredentials)
				return
			}

			headerParts := strings.SplitN(authHeader, " ", 2)
			if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
				l.WarnContext(ctx, "Invalid Authorization header format")
				reject(ctx, "missing_credentials")
				api.ErrorResponseFor(w, r, api.ErrMissingCredentials)
				return
			}

			subject, err := tokens.ValidateAccessToken(headerParts[1])
			if err != nil {
				l.WarnContext(ctx, "Token validation failed", slog.Any("error", err))
				reject(ctx, "invalid_credentials")
				api.ErrorResponseFor(w, r, api.ErrInvalidCredentials)
				return
			}
			metrics.Get().TokenValidationsTotal.Add(ctx, 1)

			ident, err := repo.GetIdentityByID(ctx, subject)
			if err != nil {
				// Only a missing row means the subject is gone; anything else
				// is a store fault and must not masquerade as a 401.
				if errors.Is(err, api.ErrUnknownIdentity) {
					l.WarnContext(ctx, "Token subject does not resolve to an identity",
						slog.Int64("subject", subject))
					reject(ctx, "unknown_identity")
					api.ErrorResponseFor(w, r, api.ErrUnknownIdentity)
					return
				}
				l.ErrorContext(ctx, "Identity lookup failed",
					slog.Int64("subject", subject), slog.Any("error", err))
				reject(ctx, "internal_error")
				api.ErrorResponseFor(w, r, api.ErrAuthenticationFailed)
				return
			}

			ctx = context.WithValue(ctx, IdentityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(ctx context.Context, reason string) {
	metrics.Get().GateRejectionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

// IdentityFromContext returns the identity published by Authenticate.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(IdentityKey).(*Identity)
	return ident, ok
}

// RequireRole gates a route group on the caller's role. Runs AFTER
// Authenticate; a missing identity means the chain is miswired and is
// treated as an internal fault rather than a role failure.
func RequireRole(logger *slog.Logger, role Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ident, ok := IdentityFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "RequireRole used without Authenticate")
				api.ErrorResponseFor(w, r, api.ErrAuthenticationFailed)
				return
			}

			if ident.Role != role {
				logger.WarnContext(ctx, "Role check failed",
					slog.String("required", string(role)),
					slog.String("actual", string(ident.Role)))
				api.ErrorResponseFor(w, r, api.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
