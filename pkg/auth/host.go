package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

const isHostKey contextKey = "is_host"

// WithIsHost stores the host flag in the context.
func WithIsHost(ctx context.Context, isHost bool) context.Context {
	return context.WithValue(ctx, isHostKey, isHost)
}

// IsHostFromContext returns whether the authenticated user is a host
// (campaign operator / payment processor callback). Returns false when not set.
func IsHostFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(isHostKey).(bool)
	return v
}

// RequireHost rejects requests whose context does not carry the host flag.
// It must run after RequireAuth or DevAuth.
func RequireHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsHostFromContext(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
