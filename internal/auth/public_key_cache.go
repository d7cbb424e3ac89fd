package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultJWKSTTL is how long a fetched key set is trusted before refetching.
const DefaultJWKSTTL = time.Hour

// ErrKeyNotFound is returned when the key set has no key with the requested kid.
var ErrKeyNotFound = errors.New("kid not found in JWKS")

// PublicKeyCache resolves token signing keys by kid.
type PublicKeyCache interface {
	GetKey(ctx context.Context, jwksURL, kid string) (crypto.PublicKey, error)
}

// JWKSCache fetches JSON Web Key Sets over HTTP and keeps the parsed keys in memory.
// The HTTP client is expected to be a caching client so conditional requests are cheap.
type JWKSCache struct {
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]*cachedJWKS
}

type cachedJWKS struct {
	keys      map[string]crypto.PublicKey
	expiresAt time.Time
}

// NewJWKSCache creates a new key cache.
func NewJWKSCache(httpClient *http.Client, ttl time.Duration) *JWKSCache {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}

	return &JWKSCache{
		httpClient: httpClient,
		ttl:        ttl,
		now:        time.Now,
		cache:      make(map[string]*cachedJWKS),
	}
}

// GetKey returns the public key for kid. An unknown kid in a fresh key set
// triggers one refetch so rotated keys are picked up before the TTL expires.
func (c *JWKSCache) GetKey(ctx context.Context, jwksURL, kid string) (crypto.PublicKey, error) {
	c.mu.RLock()
	cached, ok := c.cache[jwksURL]
	c.mu.RUnlock()

	if ok && c.now().Before(cached.expiresAt) {
		if key, ok := cached.keys[kid]; ok {
			log.Debug().Str("kid", kid).Msg("JWKS cache hit")
			return key, nil
		}
	}

	keys, err := c.fetch(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[jwksURL] = &cachedJWKS{
		keys:      keys,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}

	log.Info().Str("kid", kid).Int("total_keys", len(keys)).Msg("Cached JWKS")
	return key, nil
}

func (c *JWKSCache) fetch(ctx context.Context, jwksURL string) (map[string]crypto.PublicKey, error) {
	log.Debug().Str("jwks_url", jwksURL).Msg("Fetching JWKS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed: %s", resp.Status)
	}

	var jwks struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Kid == "" {
			log.Warn().Str("kty", jwk.Kty).Msg("JWK missing kid")
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}

		key, err := jwk.publicKey()
		if err != nil {
			log.Warn().Err(err).Str("kid", jwk.Kid).Msg("Failed to parse JWK")
			continue
		}
		keys[jwk.Kid] = key
	}

	return keys, nil
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`

	// RSA
	N string `json:"n"`
	E string `json:"e"`

	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (k jsonWebKey) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaPublicKey()
	case "EC":
		return k.ecPublicKey()
	default:
		return nil, fmt.Errorf("unsupported key type: %q", k.Kty)
	}
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := decodeBase64URL(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}
	eBytes, err := decodeBase64URL(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("missing RSA modulus or exponent")
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() > 1<<31-1 {
		return nil, errors.New("RSA exponent too large")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

func (k jsonWebKey) ecPublicKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	default:
		return nil, fmt.Errorf("unsupported curve: %q", k.Crv)
	}

	xBytes, err := decodeBase64URL(k.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x: %w", err)
	}
	yBytes, err := decodeBase64URL(k.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y: %w", err)
	}
	if len(xBytes) == 0 || len(yBytes) == 0 {
		return nil, errors.New("missing EC coordinates")
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

// decodeBase64URL decodes a base64url string with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(trimPadding(s))
}

func trimPadding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
