package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/service"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
)

type Dependencies struct {
	Logger logrus.FieldLogger
	Addr   string

	AccessService  *service.AccessService
	AccountService *service.AccountService
	AdminService   *service.AdminService
	AuditService   *service.AuditService
	Tokens         *Tokens

	// Healthy backs /healthz. Nil reports healthy.
	Healthy func() bool

	// Per-IP limit on /v1/access_request. Zero disables it.
	AccessRatePerMinute int
	AccessRateBurst     int
	TrustedProxies      []string
}

type Server struct {
	httpServer *http.Server
	logger     logrus.FieldLogger
	mux        *http.ServeMux

	access   *service.AccessService
	accounts *service.AccountService
	admin    *service.AdminService
	audit    *service.AuditService
	tokens   *Tokens
	healthy  func() bool

	limiter        *ipLimiter
	trustedProxies map[string]struct{}
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:         d.Logger,
		mux:            mux,
		access:         d.AccessService,
		accounts:       d.AccountService,
		admin:          d.AdminService,
		audit:          d.AuditService,
		tokens:         d.Tokens,
		healthy:        d.Healthy,
		limiter:        newIPLimiter(d.AccessRatePerMinute, d.AccessRateBurst),
		trustedProxies: make(map[string]struct{}, len(d.TrustedProxies)),
	}
	for _, p := range d.TrustedProxies {
		s.trustedProxies[p] = struct{}{}
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("POST /v1/register/confirm", s.handleConfirmEmail)
	mux.HandleFunc("POST /v1/login", s.handleLogin)

	mux.HandleFunc("POST /v1/access_request", s.rateLimited(s.handleAccessRequest))

	mux.HandleFunc("GET /v1/me/history", s.requireAuth(s.handleMyHistory))
	mux.HandleFunc("GET /v1/me/windows", s.requireAuth(s.handleMyWindows))
	mux.HandleFunc("GET /v1/users/{id}/history", s.requireAuth(s.handleUserHistory))

	mux.HandleFunc("GET /v1/admin/dashboard", s.requireAuth(s.handleDashboard))
	mux.HandleFunc("GET /v1/admin/users", s.requireAuth(s.handleListUsers))
	mux.HandleFunc("POST /v1/admin/users/{id}/approve", s.requireAuth(s.handleApproveUser))
	mux.HandleFunc("POST /v1/admin/users/{id}/deactivate", s.requireAuth(s.handleDeactivateUser))
	mux.HandleFunc("PUT /v1/admin/users/{id}/role", s.requireAuth(s.handleSetRole))
	mux.HandleFunc("DELETE /v1/admin/users/{id}/role", s.requireAuth(s.handleClearRole))
	mux.HandleFunc("GET /v1/admin/windows", s.requireAuth(s.handleListWindows))
	mux.HandleFunc("POST /v1/admin/windows", s.requireAuth(s.handleCreateWindow))
	mux.HandleFunc("DELETE /v1/admin/windows/{id}", s.requireAuth(s.handleDeleteWindow))
	mux.HandleFunc("GET /v1/admin/logs", s.requireAuth(s.handleQueryLogs))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.healthy != nil && !s.healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeServiceError maps service and store errors onto HTTP statuses.
// Anything unrecognised is logged and reported as a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "invalid_user_id", err.Error())
	case errors.Is(err, service.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid_code", err.Error())
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email", err.Error())
	case errors.Is(err, service.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "invalid_password", err.Error())
	case errors.Is(err, service.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
	case errors.Is(err, service.ErrBadCredentials):
		s.logger.WithField("path", r.URL.Path).Warn("bad credentials")
		writeError(w, http.StatusUnauthorized, "bad_credentials", err.Error())
	case errors.Is(err, service.ErrEmailNotConfirmed):
		writeError(w, http.StatusForbidden, "email_not_confirmed", err.Error())
	case errors.Is(err, service.ErrForbidden):
		s.logger.WithFields(logrus.Fields{"path": r.URL.Path, "user_id": userIDFrom(r.Context())}).Warn("forbidden")
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, service.ErrWindowNotFound):
		writeError(w, http.StatusNotFound, "window_not_found", err.Error())
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
