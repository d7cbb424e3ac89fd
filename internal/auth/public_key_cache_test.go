package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWKSCache_GetKey(t *testing.T) {
	keys := newTestKeys(t)
	baseURL, hits := serveJWKS(t, keys)
	jwksURL := baseURL + "/.well-known/jwks.json"

	cache := NewJWKSCache(nil, time.Hour)
	ctx := context.Background()

	t.Run("rsa key", func(t *testing.T) {
		key, err := cache.GetKey(ctx, jwksURL, "rsa-1")
		require.NoError(t, err)

		rsaKey, ok := key.(*rsa.PublicKey)
		require.True(t, ok)
		require.Equal(t, keys.rsaKey.E, rsaKey.E)
		require.Zero(t, keys.rsaKey.N.Cmp(rsaKey.N))
	})

	t.Run("ec key served from cache", func(t *testing.T) {
		before := hits.Load()

		key, err := cache.GetKey(ctx, jwksURL, "ec-1")
		require.NoError(t, err)

		ecKey, ok := key.(*ecdsa.PublicKey)
		require.True(t, ok)
		require.Zero(t, keys.ecKey.X.Cmp(ecKey.X))
		require.Equal(t, before, hits.Load())
	})

	t.Run("unknown kid refetches once", func(t *testing.T) {
		before := hits.Load()

		_, err := cache.GetKey(ctx, jwksURL, "missing")
		require.ErrorIs(t, err, ErrKeyNotFound)
		require.Equal(t, before+1, hits.Load())
	})
}

func TestJWKSCache_Expiry(t *testing.T) {
	keys := newTestKeys(t)
	baseURL, hits := serveJWKS(t, keys)
	jwksURL := baseURL + "/.well-known/jwks.json"

	now := time.Now()
	cache := NewJWKSCache(nil, time.Minute)
	cache.now = func() time.Time { return now }

	_, err := cache.GetKey(context.Background(), jwksURL, "rsa-1")
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	now = now.Add(2 * time.Minute)

	_, err = cache.GetKey(context.Background(), jwksURL, "rsa-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestJWKSCache_FetchErrors(t *testing.T) {
	cache := NewJWKSCache(nil, time.Hour)

	baseURL, _ := serveJWKS(t, newTestKeys(t))

	_, err := cache.GetKey(context.Background(), baseURL+"/wrong-path", "rsa-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWKS request failed")
}

func TestJSONWebKey_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		jwk  jsonWebKey
	}{
		{name: "unknown kty", jwk: jsonWebKey{Kty: "oct"}},
		{name: "unknown curve", jwk: jsonWebKey{Kty: "EC", Crv: "P-521", X: "AQ", Y: "AQ"}},
		{name: "empty rsa", jwk: jsonWebKey{Kty: "RSA"}},
		{name: "bad base64", jwk: jsonWebKey{Kty: "EC", Crv: "P-256", X: "!!", Y: "AQ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.jwk.publicKey()
			require.Error(t, err)
		})
	}
}
