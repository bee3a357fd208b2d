package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Lockbox/server/internal/httpapi"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/credential"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/service"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store/memory"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/throttle"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/window"
)

const (
	adminEmail    = "root@example.com"
	adminPassword = "root-password"
)

type testEnv struct {
	ts     *httptest.Server
	st     *memory.Store
	hasher *credential.Hasher
	tokens *httpapi.Tokens
	hook   *test.Hook
}

// newTestEnv wires the full dependency graph on the memory store with one
// permanent admin, and serves it with httptest.
func newTestEnv(t *testing.T, ratePerMinute, burst int) *testEnv {
	t.Helper()

	logger, hook := test.NewNullLogger()
	st := memory.New()
	hasher := credential.NewHasher(bcrypt.MinCost)
	tokens := httpapi.NewTokens("test-secret", time.Hour)

	pwHash, err := hasher.Hash(adminPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	confirmed := time.Now().UTC()
	if err := st.CreateUser(context.Background(), types.User{
		ID:               "admin-1",
		Email:            adminEmail,
		PasswordHash:     pwHash,
		Status:           types.StatusActive,
		Role:             types.RoleAdmin,
		EmailConfirmedAt: &confirmed,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:              logger,
		Addr:                ":0",
		AccessService:       service.NewAccessService(st, hasher, throttle.Policy{}, time.UTC, logger),
		AccountService:      service.NewAccountService(st, window.NewRegistry(st, time.UTC), hasher, logger),
		AdminService:        service.NewAdminService(st, hasher, throttle.Policy{}, logger),
		AuditService:        service.NewAuditService(st, st),
		Tokens:              tokens,
		AccessRatePerMinute: ratePerMinute,
		AccessRateBurst:     burst,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, st: st, hasher: hasher, tokens: tokens, hook: hook}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := e.do(t, "POST", "/v1/login", "", map[string]string{"email": email, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, status, body)
	}
	return decode[struct {
		Token string `json:"token"`
	}](t, body).Token
}

// confirmTokenFor pulls the confirmation token out of the operator log.
func (e *testEnv) confirmTokenFor(t *testing.T, userID string) string {
	t.Helper()
	for _, entry := range e.hook.AllEntries() {
		if entry.Data["user_id"] == userID {
			if tok, ok := entry.Data["confirm_token"].(string); ok {
				return tok
			}
		}
	}
	t.Fatalf("no confirmation token logged for %s", userID)
	return ""
}

// registerActive walks a new user through register, confirm and approve,
// and opens an always-on window for them. It returns the id and PIN.
func (e *testEnv) registerActive(t *testing.T, email string) (string, string) {
	t.Helper()

	status, body := e.do(t, "POST", "/v1/register", "", map[string]string{"email": email, "password": "long enough"})
	if status != http.StatusCreated {
		t.Fatalf("register: status %d: %s", status, body)
	}
	userID := decode[map[string]string](t, body)["user_id"]

	status, body = e.do(t, "POST", "/v1/register/confirm", "", map[string]string{"token": e.confirmTokenFor(t, userID)})
	if status != http.StatusOK {
		t.Fatalf("confirm: status %d: %s", status, body)
	}

	admin := e.login(t, adminEmail, adminPassword)
	status, body = e.do(t, "POST", "/v1/admin/users/"+userID+"/approve", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("approve: status %d: %s", status, body)
	}
	pin := decode[map[string]string](t, body)["pin"]

	status, body = e.do(t, "POST", "/v1/admin/windows", admin, map[string]any{
		"user_id": userID, "kind": "recurring", "start_minute": 0, "end_minute": 1440,
	})
	if status != http.StatusCreated {
		t.Fatalf("create window: status %d: %s", status, body)
	}
	return userID, pin
}

type accessResp struct {
	Granted    bool   `json:"granted"`
	Message    string `json:"message"`
	ServerTime string `json:"server_time"`
}

// ── Full flow ────────────────────────────────────────────────────────────────

func TestFlow_RegisterApproveAccessHistory(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	userID, pin := e.registerActive(t, "Grace@Example.com")
	if len(pin) != 6 {
		t.Fatalf("expected a 6-digit PIN, got %q", pin)
	}

	status, body := e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": userID, "code": pin})
	if status != http.StatusOK {
		t.Fatalf("access_request: status %d: %s", status, body)
	}
	granted := decode[accessResp](t, body)
	if !granted.Granted || granted.Message != "Access granted." || granted.ServerTime == "" {
		t.Errorf("unexpected grant response: %+v", granted)
	}

	status, body = e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": userID, "code": "not-the-pin"})
	if status != http.StatusOK {
		t.Fatalf("access_request: status %d: %s", status, body)
	}
	denied := decode[accessResp](t, body)
	if denied.Granted || denied.Message != "Access denied." {
		t.Errorf("unexpected deny response: %+v", denied)
	}
	if strings.Contains(string(body), "BAD_PIN") {
		t.Error("deny reason must not reach the end user")
	}

	token := e.login(t, "grace@example.com", "long enough")
	status, body = e.do(t, "GET", "/v1/me/history", token, nil)
	if status != http.StatusOK {
		t.Fatalf("history: status %d: %s", status, body)
	}
	history := decode[struct {
		Logs []types.AccessLog `json:"logs"`
	}](t, body)
	if len(history.Logs) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history.Logs))
	}
	if history.Logs[0].Reason != types.ReasonBadPIN || history.Logs[1].Reason != types.ReasonOK {
		t.Errorf("unexpected history order: %v, %v", history.Logs[0].Reason, history.Logs[1].Reason)
	}

	status, _ = e.do(t, "GET", "/v1/users/"+userID+"/history", token, nil)
	if status != http.StatusOK {
		t.Errorf("own history by id: expected 200, got %d", status)
	}
	status, _ = e.do(t, "GET", "/v1/users/admin-1/history", token, nil)
	if status != http.StatusForbidden {
		t.Errorf("someone else's history: expected 403, got %d", status)
	}

	status, body = e.do(t, "GET", "/v1/me/windows", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me/windows: status %d: %s", status, body)
	}
	mine := decode[struct {
		Windows []types.AccessWindow `json:"windows"`
		Within  bool                 `json:"within_window"`
	}](t, body)
	if len(mine.Windows) != 1 || !mine.Within {
		t.Errorf("unexpected windows response: %s", body)
	}
}

// ── Access request ───────────────────────────────────────────────────────────

func TestAccessRequest_UnknownUserGetsGenericDenial(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	status, body := e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": "ghost-1", "code": "123456"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	resp := decode[accessResp](t, body)
	if resp.Granted || resp.Message != "Access denied." {
		t.Errorf("unexpected response: %+v", resp)
	}

	logs := e.st.Logs()
	if len(logs) != 1 || logs[0].Reason != types.ReasonUnknownUser || logs[0].ClaimedUserID != "ghost-1" {
		t.Errorf("expected one UNKNOWN_USER log, got %+v", logs)
	}
}

func TestAccessRequest_ValidationIsNotLogged(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	cases := []struct {
		body any
		code string
	}{
		{map[string]string{"user_id": "", "code": "123456"}, "invalid_user_id"},
		{map[string]string{"user_id": "u-1", "code": " "}, "invalid_code"},
		{map[string]any{"user_id": "u-1", "code": "1", "extra": true}, "bad_json"},
	}
	for _, tc := range cases {
		status, body := e.do(t, "POST", "/v1/access_request", "", tc.body)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", status, body)
			continue
		}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &env); err != nil || env.Error.Code != tc.code {
			t.Errorf("expected error code %s, got %s", tc.code, body)
		}
	}
	if n := len(e.st.Logs()); n != 0 {
		t.Errorf("expected no audit entries, got %d", n)
	}
}

func TestAccessRequest_Protobuf(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	userID, pin := e.registerActive(t, "heidi@example.com")

	msg, err := structpb.NewStruct(map[string]any{"user_id": userID, "code": pin})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	payload, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(e.ts.URL+"/v1/access_request", "application/x-protobuf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("expected protobuf response, got %q", ct)
	}

	raw, _ := io.ReadAll(resp.Body)
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.GetFields()["granted"].GetBoolValue() {
		t.Errorf("expected granted=true, got %v", out.AsMap())
	}
	if out.GetFields()["message"].GetStringValue() != "Access granted." {
		t.Errorf("unexpected message: %v", out.AsMap())
	}
}

func TestAccessRequest_RateLimitedPerIP(t *testing.T) {
	e := newTestEnv(t, 1, 2)

	body := map[string]string{"user_id": "ghost-1", "code": "123456"}
	for i := 0; i < 2; i++ {
		if status, _ := e.do(t, "POST", "/v1/access_request", "", body); status != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, status)
		}
	}
	status, _ := e.do(t, "POST", "/v1/access_request", "", body)
	if status != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", status)
	}
	if n := len(e.st.Logs()); n != 2 {
		t.Errorf("rate-limited requests must not be evaluated: %d logs", n)
	}
}

// ── Auth ─────────────────────────────────────────────────────────────────────

func TestAuth_BearerRequired(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	if status, _ := e.do(t, "GET", "/v1/me/history", "", nil); status != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", status)
	}
	if status, _ := e.do(t, "GET", "/v1/me/history", "garbage", nil); status != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", status)
	}

	confirm, err := e.tokens.IssueEmailConfirm("admin-1")
	if err != nil {
		t.Fatalf("IssueEmailConfirm: %v", err)
	}
	if status, _ := e.do(t, "GET", "/v1/admin/users", confirm, nil); status != http.StatusUnauthorized {
		t.Errorf("confirmation token used as session: expected 401, got %d", status)
	}

	other := httpapi.NewTokens("another-secret", time.Hour)
	forged, _ := other.IssueSession("admin-1")
	if status, _ := e.do(t, "GET", "/v1/admin/users", forged, nil); status != http.StatusUnauthorized {
		t.Errorf("token signed with another key: expected 401, got %d", status)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	status, _ := e.do(t, "POST", "/v1/login", "", map[string]string{"email": adminEmail, "password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", status)
	}

	status, body := e.do(t, "POST", "/v1/register", "", map[string]string{"email": "ivan@example.com", "password": "long enough"})
	if status != http.StatusCreated {
		t.Fatalf("register: %d %s", status, body)
	}
	status, _ = e.do(t, "POST", "/v1/login", "", map[string]string{"email": "ivan@example.com", "password": "long enough"})
	if status != http.StatusForbidden {
		t.Errorf("unconfirmed email: expected 403, got %d", status)
	}

	status, _ = e.do(t, "POST", "/v1/register", "", map[string]string{"email": "IVAN@example.com", "password": "long enough"})
	if status != http.StatusConflict {
		t.Errorf("duplicate email: expected 409, got %d", status)
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func TestAdmin_NonAdminForbidden(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	userID, _ := e.registerActive(t, "judy@example.com")
	token := e.login(t, "judy@example.com", "long enough")

	for _, p := range []struct{ method, path string }{
		{"GET", "/v1/admin/users"},
		{"GET", "/v1/admin/logs"},
		{"GET", "/v1/admin/windows"},
		{"POST", "/v1/admin/users/" + userID + "/approve"},
		{"PUT", "/v1/admin/users/" + userID + "/role"},
	} {
		if status, body := e.do(t, p.method, p.path, token, nil); status != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d: %s", p.method, p.path, status, body)
		}
	}
}

func TestAdmin_TemporaryRoleAndLogs(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	userID, pin := e.registerActive(t, "ken@example.com")
	admin := e.login(t, adminEmail, adminPassword)
	user := e.login(t, "ken@example.com", "long enough")

	until := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	status, body := e.do(t, "PUT", "/v1/admin/users/"+userID+"/role", admin, map[string]string{"expires_at": until})
	if status != http.StatusNoContent {
		t.Fatalf("set role: %d %s", status, body)
	}
	if status, _ := e.do(t, "GET", "/v1/admin/users", user, nil); status != http.StatusOK {
		t.Errorf("temporary admin: expected 200, got %d", status)
	}

	status, body = e.do(t, "DELETE", "/v1/admin/users/"+userID+"/role", admin, nil)
	if status != http.StatusNoContent {
		t.Fatalf("clear role: %d %s", status, body)
	}
	if status, _ := e.do(t, "GET", "/v1/admin/users", user, nil); status != http.StatusForbidden {
		t.Errorf("cleared admin: expected 403, got %d", status)
	}

	e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": userID, "code": pin})
	e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": userID, "code": "000"})
	e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": "ghost-1", "code": "000"})

	status, body = e.do(t, "GET", "/v1/admin/logs?reason=bad_pin&user_id="+userID, admin, nil)
	if status != http.StatusOK {
		t.Fatalf("logs: %d %s", status, body)
	}
	logs := decode[struct {
		Logs []types.AccessLog `json:"logs"`
	}](t, body).Logs
	if len(logs) != 1 || logs[0].Reason != types.ReasonBadPIN {
		t.Errorf("expected one BAD_PIN log, got %+v", logs)
	}

	status, _ = e.do(t, "GET", "/v1/admin/logs?from=yesterday", admin, nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad filter: expected 400, got %d", status)
	}

	status, body = e.do(t, "GET", "/v1/admin/logs?limit=2", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("logs limit: %d %s", status, body)
	}
	if n := len(decode[struct {
		Logs []types.AccessLog `json:"logs"`
	}](t, body).Logs); n != 2 {
		t.Errorf("expected 2 logs with limit, got %d", n)
	}
}

func TestAdmin_Windows(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	admin := e.login(t, adminEmail, adminPassword)

	status, body := e.do(t, "POST", "/v1/admin/windows", admin, map[string]any{
		"user_id": "*", "kind": "RECURRING", "start_minute": 22 * 60, "end_minute": 6 * 60,
		"weekdays": []string{"Fri", "SAT"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	id := decode[map[string]int64](t, body)["window_id"]

	status, _ = e.do(t, "POST", "/v1/admin/windows", admin, map[string]any{
		"user_id": "*", "kind": "RECURRING", "start_minute": 60, "end_minute": 60,
	})
	if status != http.StatusBadRequest {
		t.Errorf("empty window: expected 400, got %d", status)
	}
	status, _ = e.do(t, "POST", "/v1/admin/windows", admin, map[string]any{
		"user_id": "*", "kind": "RECURRING", "start_minute": 60, "end_minute": 120, "weekdays": []string{"Funday"},
	})
	if status != http.StatusBadRequest {
		t.Errorf("bad weekday: expected 400, got %d", status)
	}

	status, body = e.do(t, "GET", "/v1/admin/windows?user_id=*", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	ws := decode[struct {
		Windows []types.AccessWindow `json:"windows"`
	}](t, body).Windows
	if len(ws) != 1 || ws[0].Weekdays != types.MaskOf(time.Friday, time.Saturday) {
		t.Errorf("unexpected windows: %+v", ws)
	}

	path := "/v1/admin/windows/" + strconv.FormatInt(id, 10)
	if status, _ := e.do(t, "DELETE", path, admin, nil); status != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", status)
	}
	if status, _ := e.do(t, "DELETE", path, admin, nil); status != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", status)
	}
}

func TestHealthz(t *testing.T) {
	logger, _ := test.NewNullLogger()
	healthy := true
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:  logger,
		Healthy: func() bool { return healthy },
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	healthy = false
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

// ── History limit & dashboard ────────────────────────────────────────────────

func TestHistory_LimitIsOptional(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	userID, pin := e.registerActive(t, "heidi@example.com")
	for i := 0; i < 3; i++ {
		if status, body := e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": userID, "code": pin}); status != http.StatusOK {
			t.Fatalf("access_request: status %d: %s", status, body)
		}
	}
	token := e.login(t, "heidi@example.com", "long enough")

	for path, want := range map[string]int{
		"/v1/me/history":         3,
		"/v1/me/history?limit=2": 2,
		"/v1/me/history?limit=0": 3,
	} {
		status, body := e.do(t, "GET", path, token, nil)
		if status != http.StatusOK {
			t.Fatalf("%s: status %d: %s", path, status, body)
		}
		got := decode[struct {
			Logs []types.AccessLog `json:"logs"`
		}](t, body)
		if len(got.Logs) != want {
			t.Errorf("%s: expected %d entries, got %d", path, want, len(got.Logs))
		}
	}

	if status, _ := e.do(t, "GET", "/v1/me/history?limit=-1", token, nil); status != http.StatusBadRequest {
		t.Errorf("negative limit: expected 400, got %d", status)
	}
}

func TestDashboard_PendingAndRecent(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	userID, pin := e.registerActive(t, "ivan@example.com")

	// One confirmed account waiting for approval, one still unconfirmed.
	status, body := e.do(t, "POST", "/v1/register", "", map[string]string{"email": "judy@example.com", "password": "long enough"})
	if status != http.StatusCreated {
		t.Fatalf("register: status %d: %s", status, body)
	}
	judy := decode[map[string]string](t, body)["user_id"]
	if status, body := e.do(t, "POST", "/v1/register/confirm", "", map[string]string{"token": e.confirmTokenFor(t, judy)}); status != http.StatusOK {
		t.Fatalf("confirm: status %d: %s", status, body)
	}
	if status, body := e.do(t, "POST", "/v1/register", "", map[string]string{"email": "ken@example.com", "password": "long enough"}); status != http.StatusCreated {
		t.Fatalf("register: status %d: %s", status, body)
	}

	for i := 0; i < 12; i++ {
		e.do(t, "POST", "/v1/access_request", "", map[string]string{"user_id": userID, "code": pin})
	}

	admin := e.login(t, adminEmail, adminPassword)
	status, body = e.do(t, "GET", "/v1/admin/dashboard", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("dashboard: status %d: %s", status, body)
	}
	d := decode[struct {
		PendingApprovals int               `json:"pending_approvals"`
		RecentAttempts   []types.AccessLog `json:"recent_attempts"`
	}](t, body)
	if d.PendingApprovals != 1 {
		t.Errorf("expected 1 pending approval, got %d", d.PendingApprovals)
	}
	if len(d.RecentAttempts) != 10 {
		t.Errorf("expected the 10 most recent attempts, got %d", len(d.RecentAttempts))
	}

	user := e.login(t, "ivan@example.com", "long enough")
	if status, _ := e.do(t, "GET", "/v1/admin/dashboard", user, nil); status != http.StatusForbidden {
		t.Errorf("non-admin dashboard: expected 403, got %d", status)
	}
}
