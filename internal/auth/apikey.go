package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// APIKeyPrefix marks a token as an API key.
	APIKeyPrefix = "vi_"

	apiKeyIDBytes     = 4
	apiKeySecretBytes = 24
)

var (
	ErrInvalidAPIKey = errors.New("invalid or missing API key")
	ErrMissingPepper = errors.New("api key pepper is required")
)

// GeneratedAPIKey is a freshly minted key. Token is shown to the user once and never stored.
type GeneratedAPIKey struct {
	Token  string
	Prefix string
}

// GenerateAPIKey creates a token of the form vi_<8 hex>_<base58 secret>.
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	id := make([]byte, apiKeyIDBytes)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("failed to generate key id: %w", err)
	}

	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate key secret: %w", err)
	}

	prefix := APIKeyPrefix + hex.EncodeToString(id)
	return &GeneratedAPIKey{
		Token:  prefix + "_" + base58.Encode(secret),
		Prefix: prefix,
	}, nil
}

// ParseAPIKey checks the token's shape and returns its display prefix.
func ParseAPIKey(token string) (string, error) {
	if !strings.HasPrefix(token, APIKeyPrefix) {
		return "", ErrInvalidAPIKey
	}

	id, secret, ok := strings.Cut(strings.TrimPrefix(token, APIKeyPrefix), "_")
	if !ok || len(id) != apiKeyIDBytes*2 || secret == "" {
		return "", ErrInvalidAPIKey
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", ErrInvalidAPIKey
	}
	if _, err := base58.Decode(secret); err != nil {
		return "", ErrInvalidAPIKey
	}

	return APIKeyPrefix + id, nil
}

// KeyHasher computes the stored lookup hash of API keys.
type KeyHasher struct {
	pepper []byte
}

// NewKeyHasher returns a hasher keyed with pepper. BLAKE2b accepts keys up to 64 bytes,
// longer peppers are reduced with an unkeyed BLAKE2b-512 first.
func NewKeyHasher(pepper string) (*KeyHasher, error) {
	if pepper == "" {
		return nil, ErrMissingPepper
	}

	key := []byte(pepper)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}

	return &KeyHasher{pepper: key}, nil
}

// Hash returns the hex keyed BLAKE2b-256 digest of token.
func (h *KeyHasher) Hash(token string) string {
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		// only possible with a key longer than 64 bytes, which NewKeyHasher prevents
		panic(err)
	}
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
