package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, keys *testKeys) (*SessionVerifier, string) {
	t.Helper()

	issuer, _ := serveJWKS(t, keys)
	verifier, err := NewSessionVerifier(SessionVerifierConfig{
		Issuer:            issuer,
		AuthorizedParties: []string{"https://app.example.com"},
	}, NewJWKSCache(nil, time.Hour))
	require.NoError(t, err)

	return verifier, issuer
}

func TestNewSessionVerifier(t *testing.T) {
	_, err := NewSessionVerifier(SessionVerifierConfig{}, nil)
	require.Error(t, err)

	v, err := NewSessionVerifier(SessionVerifierConfig{Issuer: "https://clerk.example.com/"}, nil)
	require.NoError(t, err)
	require.Equal(t, "https://clerk.example.com", v.cfg.Issuer)
	require.Equal(t, "https://clerk.example.com/.well-known/jwks.json", v.cfg.JWKSURL)
}

func TestSessionVerifier_Verify(t *testing.T) {
	keys := newTestKeys(t)
	verifier, issuer := newTestVerifier(t, keys)
	ctx := context.Background()

	t.Run("rs256", func(t *testing.T) {
		token := keys.sign(t, jwt.SigningMethodRS256, "rsa-1", validClaims(issuer))

		session, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "user_2abc", session.Subject)
		require.Equal(t, "sess_123", session.SessionID)
		require.Equal(t, "ada@example.com", session.Email)
		require.Equal(t, "Ada Lovelace", session.Name)
		require.True(t, session.HasProfile())
	})

	t.Run("es256", func(t *testing.T) {
		claims := validClaims(issuer)
		delete(claims, "email")
		delete(claims, "name")
		claims["first_name"] = "Grace"
		claims["last_name"] = "Hopper"
		claims["image_url"] = "https://img.example.com/g.png"

		session, err := verifier.Verify(ctx, keys.sign(t, jwt.SigningMethodES256, "ec-1", claims))
		require.NoError(t, err)
		require.Equal(t, "Grace Hopper", session.Name)
		require.Equal(t, "https://img.example.com/g.png", session.AvatarURL)
		require.False(t, session.HasProfile())
	})

	tests := []struct {
		name   string
		token  func() string
		errMsg string
	}{
		{
			name:  "empty",
			token: func() string { return "" },
		},
		{
			name: "expired",
			token: func() string {
				claims := validClaims(issuer)
				claims["exp"] = time.Now().Add(-time.Minute).Unix()
				return keys.sign(t, jwt.SigningMethodRS256, "rsa-1", claims)
			},
		},
		{
			name: "missing exp",
			token: func() string {
				claims := validClaims(issuer)
				delete(claims, "exp")
				return keys.sign(t, jwt.SigningMethodRS256, "rsa-1", claims)
			},
		},
		{
			name: "wrong issuer",
			token: func() string {
				return keys.sign(t, jwt.SigningMethodRS256, "rsa-1", validClaims("https://evil.example.com"))
			},
		},
		{
			name: "hmac rejected",
			token: func() string {
				return keys.sign(t, jwt.SigningMethodHS256, "rsa-1", validClaims(issuer))
			},
		},
		{
			name: "unknown kid",
			token: func() string {
				return keys.sign(t, jwt.SigningMethodRS256, "rotated", validClaims(issuer))
			},
		},
		{
			name: "unauthorized party",
			token: func() string {
				claims := validClaims(issuer)
				claims["azp"] = "https://other.example.com"
				return keys.sign(t, jwt.SigningMethodRS256, "rsa-1", claims)
			},
		},
		{
			name: "missing subject",
			token: func() string {
				claims := validClaims(issuer)
				delete(claims, "sub")
				return keys.sign(t, jwt.SigningMethodRS256, "rsa-1", claims)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, tt.token())
			require.Error(t, err)
		})
	}
}

func TestSessionVerifier_VerifyRequest(t *testing.T) {
	keys := newTestKeys(t)
	verifier, issuer := newTestVerifier(t, keys)
	token := keys.sign(t, jwt.SigningMethodRS256, "rsa-1", validClaims(issuer))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		session, err := verifier.VerifyRequest(req)
		require.NoError(t, err)
		require.Equal(t, "user_2abc", session.Subject)
	})

	t.Run("session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

		session, err := verifier.VerifyRequest(req)
		require.NoError(t, err)
		require.Equal(t, "user_2abc", session.Subject)
	})

	t.Run("no credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)

		_, err := verifier.VerifyRequest(req)
		require.ErrorIs(t, err, ErrMissingSession)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "Bearer ", ok: false},
		{header: "Basic abc", ok: false},
		{header: "abc", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := BearerToken(req)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
