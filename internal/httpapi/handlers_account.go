package httpapi

import (
	"net/http"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	userID, err := s.accounts.CreatePendingUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, err := s.tokens.IssueEmailConfirm(userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// No mail transport: the confirmation token goes to the operator log.
	s.logger.WithField("user_id", userID).WithField("confirm_token", token).Info("email confirmation token issued")

	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	userID, err := s.tokens.Parse(req.Token, purposeEmailConfirm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_token", "invalid or expired confirmation token")
		return
	}
	if err := s.accounts.ConfirmEmail(r.Context(), userID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "INACTIVE"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	u, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	token, err := s.tokens.IssueSession(u.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}
