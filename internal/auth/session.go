package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// SessionCookieName is the cookie the identity provider's frontend SDK stores the session token in.
const SessionCookieName = "__session"

var (
	ErrMissingSession = errors.New("missing session token")
	ErrInvalidSession = errors.New("invalid session token")
)

// Session is the verified content of an identity provider session token.
type Session struct {
	Subject   string
	SessionID string
	Email     string
	Name      string
	AvatarURL string
}

// HasProfile reports whether the token carried enough profile data to create a user.
func (s *Session) HasProfile() bool {
	return s.Email != ""
}

type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID       string `json:"sid,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	Email           string `json:"email,omitempty"`
	Name            string `json:"name,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Picture         string `json:"picture,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
}

func (c *sessionClaims) session() *Session {
	s := &Session{
		Subject:   c.Subject,
		SessionID: c.SessionID,
		Email:     strings.TrimSpace(c.Email),
		Name:      strings.TrimSpace(c.Name),
		AvatarURL: c.ImageURL,
	}
	if s.Name == "" {
		s.Name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if s.AvatarURL == "" {
		s.AvatarURL = c.Picture
	}
	return s
}

// SessionVerifierConfig configures session token verification.
type SessionVerifierConfig struct {
	// Issuer is the identity provider frontend API URL, e.g. https://clerk.example.com.
	Issuer string
	// JWKSURL defaults to {Issuer}/.well-known/jwks.json.
	JWKSURL string
	// AuthorizedParties restricts the azp claim when non-empty.
	AuthorizedParties []string
	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

// SessionVerifier verifies identity provider session JWTs.
type SessionVerifier struct {
	cfg  SessionVerifierConfig
	keys PublicKeyCache
}

// NewSessionVerifier creates a verifier that resolves signing keys through keys.
func NewSessionVerifier(cfg SessionVerifierConfig, keys PublicKeyCache) (*SessionVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("session issuer is required")
	}
	cfg.Issuer = strings.TrimRight(cfg.Issuer, "/")
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = cfg.Issuer + "/.well-known/jwks.json"
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 5 * time.Second
	}

	return &SessionVerifier{cfg: cfg, keys: keys}, nil
}

// Verify parses and validates a session token: signature (RS256 or ES256),
// issuer, expiry and the authorized party when configured.
func (v *SessionVerifier) Verify(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, ErrMissingSession
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid header")
			}
			return v.keys.GetKey(ctx, v.cfg.JWKSURL, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}

	if len(v.cfg.AuthorizedParties) > 0 && claims.AuthorizedParty != "" &&
		!slices.Contains(v.cfg.AuthorizedParties, claims.AuthorizedParty) {
		return nil, fmt.Errorf("%w: unauthorized party %q", ErrInvalidSession, claims.AuthorizedParty)
	}

	return claims.session(), nil
}

// VerifyRequest extracts the session token from the request and verifies it.
func (v *SessionVerifier) VerifyRequest(r *http.Request) (*Session, error) {
	session, err := v.Verify(r.Context(), SessionToken(r))
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("Session verification failed")
		return nil, err
	}
	return session, nil
}

// SessionToken returns the bearer token, or the session cookie when no
// Authorization header is present.
func SessionToken(r *http.Request) string {
	if token, ok := BearerToken(r); ok {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// BearerToken returns the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
