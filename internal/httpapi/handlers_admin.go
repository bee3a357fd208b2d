package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.audit.Dashboard(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d.RecentAttempts = nonNil(d.RecentAttempts)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.admin.ListUsers(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": nonNil(users)})
}

// handleApproveUser returns the new PIN. This response is the only place the
// plaintext ever appears.
func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	pin, err := s.admin.ApproveUser(r.Context(), userIDFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"user_id": r.PathValue("id"), "pin": pin})
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeactivateUser(r.Context(), userIDFrom(r.Context()), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}
	if err := s.admin.SetRoleExpiry(r.Context(), userIDFrom(r.Context()), r.PathValue("id"), req.ExpiresAt); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearRole(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.ClearAdmin(r.Context(), userIDFrom(r.Context()), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Windows ──────────────────────────────────────────────────────────────────

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	ws, err := s.admin.ListWindows(r.Context(), userIDFrom(r.Context()), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": nonNil(ws)})
}

func (s *Server) handleCreateWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	win, err := req.toWindow()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
		return
	}

	id, err := s.admin.CreateWindow(r.Context(), userIDFrom(r.Context()), win)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"window_id": id})
}

func (s *Server) handleDeleteWindow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_window_id", "window id must be a positive integer")
		return
	}
	if err := s.admin.DeleteWindow(r.Context(), userIDFrom(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Logs ─────────────────────────────────────────────────────────────────────

func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	f, err := logFilterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	logs, err := s.audit.QueryAll(r.Context(), userIDFrom(r.Context()), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": nonNil(logs)})
}
