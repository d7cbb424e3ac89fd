package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	session *Session
	err     error
}

func (s stubVerifier) VerifyRequest(*http.Request) (*Session, error) {
	return s.session, s.err
}

type stubResolver struct {
	caller *Caller
	err    error
}

func (s stubResolver) Resolve(context.Context, *Session) (*Caller, error) {
	return s.caller, s.err
}

type stubValidator struct {
	token  string
	caller *Caller
	err    error
}

func (s stubValidator) Validate(_ context.Context, token string) (*Caller, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != s.token {
		return nil, ErrInvalidAPIKey
	}
	return s.caller, nil
}

func testCaller() *Caller {
	return &Caller{
		User: &models.User{UserID: uuid.Must(uuid.NewV7()), Email: "ada@example.com"},
		Org:  &models.Organization{OrgID: uuid.Must(uuid.NewV7()), Name: "Ada's Organization"},
		Role: models.RoleOwner,
	}
}

func callerEcho(t *testing.T, want *Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFromContext(r.Context())
		require.NotNil(t, caller)
		require.Equal(t, want.User.UserID, caller.User.UserID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireSession(t *testing.T) {
	caller := testCaller()
	session := &Session{Subject: "user_1"}

	tests := []struct {
		name     string
		verifier stubVerifier
		resolver stubResolver
		status   int
		body     string
	}{
		{
			name:     "authenticated",
			verifier: stubVerifier{session: session},
			resolver: stubResolver{caller: caller},
			status:   http.StatusNoContent,
		},
		{
			name:     "invalid session",
			verifier: stubVerifier{err: ErrInvalidSession},
			status:   http.StatusUnauthorized,
			body:     `{"error":"unauthorized"}`,
		},
		{
			name:     "resolver unauthenticated",
			verifier: stubVerifier{session: session},
			resolver: stubResolver{err: ErrUnauthenticated},
			status:   http.StatusUnauthorized,
			body:     `{"error":"unauthorized"}`,
		},
		{
			name:     "resolver failure",
			verifier: stubVerifier{session: session},
			resolver: stubResolver{err: errors.New("db down")},
			status:   http.StatusInternalServerError,
			body:     `{"error":"internal-error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireSession(tt.verifier, tt.resolver)(callerEcho(t, caller))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	caller := testCaller()
	validator := stubValidator{token: "vi_0123abcd_secret", caller: caller}

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
		body      string
	}{
		{name: "valid", header: "Bearer vi_0123abcd_secret", validator: validator, status: http.StatusNoContent},
		{name: "missing", validator: validator, status: http.StatusUnauthorized, body: `{"error":"Invalid or missing API key"}`},
		{name: "wrong scheme", header: "Token vi_0123abcd_secret", validator: validator, status: http.StatusUnauthorized, body: `{"error":"Invalid or missing API key"}`},
		{name: "unknown key", header: "Bearer vi_0123abcd_other", validator: validator, status: http.StatusUnauthorized, body: `{"error":"Invalid or missing API key"}`},
		{name: "store failure", header: "Bearer vi_0123abcd_secret", validator: stubValidator{err: errors.New("db down")}, status: http.StatusInternalServerError, body: `{"error":"internal-error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAPIKey(tt.validator)(callerEcho(t, caller))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRequireWorkerSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		secret string
		header string
		status int
		body   string
	}{
		{name: "match", secret: "s3cret", header: "Bearer s3cret", status: http.StatusNoContent},
		{name: "mismatch", secret: "s3cret", header: "Bearer nope", status: http.StatusUnauthorized, body: `{"error":"unauthorized"}`},
		{name: "prefix of secret", secret: "s3cret", header: "Bearer s3c", status: http.StatusUnauthorized, body: `{"error":"unauthorized"}`},
		{name: "missing header", secret: "s3cret", status: http.StatusUnauthorized, body: `{"error":"unauthorized"}`},
		{name: "not configured", header: "Bearer anything", status: http.StatusInternalServerError, body: `{"error":"worker-secret-not-configured"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/worker/job-update", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireWorkerSecret(tt.secret)(ok).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}
