package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const clientKey contextKey = "client"

// ClientKey identifies the caller for rate limiting: the first
// X-Forwarded-For hop when present, otherwise the remote host.
func ClientKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(SetClient(r.Context(), clientFrom(r))))
	})
}

func SetClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

func GetClient(r *http.Request) (string, bool) {
	client, ok := r.Context().Value(clientKey).(string)
	return client, ok && client != ""
}

func clientFrom(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
