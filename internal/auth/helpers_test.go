package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testKeys struct {
	rsaKey *rsa.PrivateKey
	ecKey  *ecdsa.PrivateKey
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return &testKeys{rsaKey: rsaKey, ecKey: ecKey}
}

func (k *testKeys) jwks() map[string]any {
	return map[string]any{
		"keys": []map[string]any{
			{
				"kid": "rsa-1",
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(k.rsaKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.rsaKey.E)).Bytes()),
			},
			{
				"kid": "ec-1",
				"kty": "EC",
				"crv": "P-256",
				"x":   base64.RawURLEncoding.EncodeToString(k.ecKey.X.Bytes()),
				"y":   base64.RawURLEncoding.EncodeToString(k.ecKey.Y.Bytes()),
			},
		},
	}
}

// serveJWKS starts a JWKS endpoint and returns its base URL and a request counter.
func serveJWKS(t *testing.T, keys *testKeys) (string, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keys.jwks())
	}))
	t.Cleanup(srv.Close)

	return srv.URL, &hits
}

func (k *testKeys) sign(t *testing.T, method jwt.SigningMethod, kid string, claims jwt.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = kid

	var key any
	switch method.Alg() {
	case "RS256":
		key = k.rsaKey
	case "ES256":
		key = k.ecKey
	default:
		key = []byte("shared-secret")
	}

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(issuer string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   issuer,
		"sub":   "user_2abc",
		"sid":   "sess_123",
		"azp":   "https://app.example.com",
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(time.Minute).Unix(),
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
	}
}
