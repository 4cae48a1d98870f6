package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/chanop/telemetry"
)

// statusTimeout bounds how long a handler waits for the controller loop.
const statusTimeout = 2 * time.Second

// HandleHealthz answers liveness checks. The process being able to answer is enough.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready only while the bot holds a registered session.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if !h.ctl.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":       "not_ready",
			"failed_check": "irc_session",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus returns the controller snapshot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()
	st, err := h.ctl.Status(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("status unavailable", slog.Any("err", err), slog.String("component", "http"))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleAdminReload asks the bot to re-read its configuration. The reload itself is asynchronous.
func (h *Handlers) HandleAdminReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.ctl.Reload()
	telemetry.LoggerWithCorr(r.Context()).Info("reload requested via admin api", slog.String("component", "http"))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload requested"})
}

// HandleAdminUpdate asks the bot to refresh NAMES for every joined channel.
func (h *Handlers) HandleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.ctl.Update()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "update requested"})
}

// HandleAdminAudit lists recent audit records, newest first. Query: channel, limit.
func (h *Handlers) HandleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if h.audit == nil {
		http.Error(w, "audit log not configured", http.StatusNotFound)
		return
	}
	rows, err := h.audit.Recent(r.Context(), r.URL.Query().Get("channel"), parseIntQuery(r, "limit", 100))
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("audit query failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": rows, "count": len(rows)})
}
