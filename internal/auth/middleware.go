package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rs/zerolog"
)

// ErrUnauthenticated is returned by resolvers when a verified session cannot be mapped to a caller.
var ErrUnauthenticated = errors.New("unauthenticated")

// Caller is the authenticated user and the organization the request acts on.
type Caller struct {
	User *models.User
	Org  *models.Organization
	Role string
	// APIKey is set when the request authenticated with an API key.
	APIKey *models.APIKey
}

type contextKey int

const (
	callerContextKey contextKey = iota
)

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the authenticated caller, or nil.
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerContextKey).(*Caller)
	return caller
}

// SessionAuthenticator verifies the session carried by a request.
type SessionAuthenticator interface {
	VerifyRequest(r *http.Request) (*Session, error)
}

// SessionResolver maps a verified session to a caller, creating records as needed.
type SessionResolver interface {
	Resolve(ctx context.Context, session *Session) (*Caller, error)
}

// APIKeyValidator maps a presented API key to a caller.
type APIKeyValidator interface {
	Validate(ctx context.Context, token string) (*Caller, error)
}

// RequireSession authenticates dashboard requests.
func RequireSession(verifier SessionAuthenticator, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := verifier.VerifyRequest(r)
			if err != nil {
				apihttp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			caller, err := resolver.Resolve(r.Context(), session)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					apihttp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
					return
				}
				zerolog.Ctx(r.Context()).Error().Err(err).Str("subject", session.Subject).Msg("Failed to resolve caller")
				apihttp.WriteError(w, r, http.StatusInternalServerError, "internal-error")
				return
			}

			next.ServeHTTP(w, r.WithContext(withCallerLogger(r.Context(), caller)))
		})
	}
}

// RequireAPIKey authenticates public API requests with "Authorization: Bearer vi_...".
func RequireAPIKey(validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				apihttp.WriteError(w, r, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}

			caller, err := validator.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrInvalidAPIKey) {
					apihttp.WriteError(w, r, http.StatusUnauthorized, "Invalid or missing API key")
					return
				}
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to validate API key")
				apihttp.WriteError(w, r, http.StatusInternalServerError, "internal-error")
				return
			}

			next.ServeHTTP(w, r.WithContext(withCallerLogger(r.Context(), caller)))
		})
	}
}

// RequireWorkerSecret authenticates worker callbacks against a shared secret.
// An empty secret rejects every request with 500.
func RequireWorkerSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				zerolog.Ctx(r.Context()).Error().Msg("Worker shared secret is not configured")
				apihttp.WriteError(w, r, http.StatusInternalServerError, "worker-secret-not-configured")
				return
			}

			token, ok := BearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				zerolog.Ctx(r.Context()).Warn().Msg("Worker request with invalid secret")
				apihttp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withCallerLogger(ctx context.Context, caller *Caller) context.Context {
	ctx = WithCaller(ctx, caller)

	logger := zerolog.Ctx(ctx).With().
		Str("user_id", caller.User.UserID.String()).
		Str("org_id", caller.Org.OrgID.String()).
		Logger()
	return logger.WithContext(ctx)
}
