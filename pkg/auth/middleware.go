package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDFromContext は context から userID を取得する
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// WithUserID は context に userID をセットする
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// tokenFromRequest は Authorization: Bearer を優先し、なければセッションクッキーを見る
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookieName()); err == nil {
		return c.Value
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// RequireAuth は認証必須ミドルウェア。トークンを検証し、userID と host フラグを context にセットする
func RequireAuth(sessionSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := tokenFromRequest(r)
			if tok == "" {
				writeUnauthorized(w, "unauthorized")
				return
			}

			claims, err := VerifySessionToken(tok, sessionSecret)
			if err != nil {
				writeUnauthorized(w, "invalid_session")
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject)
			ctx = WithIsHost(ctx, claims.Host)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth はトークンがあれば検証して context にセットし、なければそのまま通す。
// 不正なトークンは 401 を返す
func OptionalAuth(sessionSecret []byte) func(http.Handler) http.Handler {
	required := RequireAuth(sessionSecret)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenFromRequest(r) == "" && r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

// DevUserID は開発用のダミー userID（AUTH_REQUIRED=false 時に使用）
const DevUserID = "00000000-0000-0000-0000-000000000001"

// DevAuth は開発用ミドルウェア。ダミー userID を host 権限付きで context にセットする
func DevAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithUserID(r.Context(), DevUserID)
		ctx = WithIsHost(ctx, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
