package http

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const clientIPContextKey contextKey = "client_ip"

// ClientIPResolver determines the caller's address. Forwarding headers are
// only honoured when TrustProxy is set, i.e. when the server runs behind a
// proxy that overwrites them.
type ClientIPResolver struct {
	TrustProxy bool
}

// ClientIP returns the client address for r.
// With TrustProxy it checks X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func (c ClientIPResolver) ClientIP(r *http.Request) string {
	if c.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext extracts the client IP from the request context.
// This should be called from handlers wrapped by Middleware.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// Middleware stores the client IP in the request context for audit logging.
func (c ClientIPResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPContextKey, c.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
