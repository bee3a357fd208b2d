package httpapi

import (
	"net/http"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// handleAccessRequest answers in the request's encoding. The caller only
// ever learns granted or denied; the reason stays in the audit log.
func (s *Server) handleAccessRequest(w http.ResponseWriter, r *http.Request) {
	useProto := isProtobuf(r)

	var req accessRequest
	if useProto {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
		req = accessRequestFromProto(&msg)
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	dec, err := s.access.Submit(r.Context(), types.AccessAttempt{
		UserID:   req.UserID,
		Code:     req.Code,
		At:       time.Now().UTC(),
		SourceIP: s.clientIP(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := accessResponseFrom(dec)
	if useProto {
		msg, err := accessResponseToProto(resp)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyHistory(w http.ResponseWriter, r *http.Request) {
	s.writeHistory(w, r, userIDFrom(r.Context()))
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	s.writeHistory(w, r, r.PathValue("id"))
}

// writeHistory returns the full history unless ?limit= caps it.
func (s *Server) writeHistory(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := limitFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	logs, err := s.audit.QueryForUser(r.Context(), userIDFrom(r.Context()), userID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": nonNil(logs)})
}

func (s *Server) handleMyWindows(w http.ResponseWriter, r *http.Request) {
	ws, within, err := s.accounts.MyWindows(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"windows":       nonNil(ws),
		"within_window": within,
	})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
