package handler

import (
	"log/slog"
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database"`
}

// Health は DB 接続を確認する。接続エラーの詳細はログのみに出す
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: "HealthAid API", Database: "up"}
	if err := h.db.Ping(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "health check: database ping failed", "error", err)
		resp.Status, resp.Database = "unhealthy", "down"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
