package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crm-backend/internal/core/auth"
	"crm-backend/internal/core/config"
	"crm-backend/internal/store"
	"crm-backend/pkg/utils"
)

type env struct {
	r          *gin.Engine
	s          *store.Store
	jwter      *auth.JWTer
	adminID    string
	adminToken string
}

func newTestEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Unique in-memory database per test to avoid cross-test collisions.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s := store.New(db, nil)
	if err := s.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	admin, err := s.EnsureAdmin(context.Background(), "admin@crm.local", "admin123!")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	jwter := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "crm-test", TTL: time.Hour}
	adminToken, err := jwter.Issue(auth.Identity{
		ID:    admin.Str("id"),
		Email: admin.Str("email"),
		Name:  admin.Str("name"),
		Role:  admin.Str("role"),
	})
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}

	cfg := &config.Config{}
	cfg.App.Name = "crm-backend"
	cfg.App.Env = "test"

	return &env{
		r:          NewEngine(cfg, zap.NewNop(), s, jwter),
		s:          s,
		jwter:      jwter,
		adminID:    admin.Str("id"),
		adminToken: adminToken,
	}
}

// seedUser persists a user record directly and returns its id and a token.
func (e *env) seedUser(t *testing.T, email, name string, blocked bool) (string, string) {
	t.Helper()
	id := utils.NewID("user")
	rec := store.Record{
		"id":        id,
		"type":      "user",
		"email":     email,
		"password":  utils.HashPassword("password123"),
		"name":      name,
		"role":      "user",
		"isBlocked": blocked,
		"createdAt": utils.NowISO(),
	}
	if err := e.s.Put(context.Background(), rec); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tok, err := e.jwter.Issue(auth.Identity{ID: id, Email: email, Name: name, Role: "user"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return id, tok
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, w.Code, w.Body.String())
	}
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/health", "", nil)
	wantStatus(t, w, http.StatusOK)
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == nil {
		t.Fatal("expected a timestamp")
	}
}

func TestUnmatchedRouteReturns404Envelope(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/nope", e.adminToken, nil)
	wantStatus(t, w, http.StatusNotFound)
	if decode(t, w)["error"] != "Endpoint not found" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRequestIDEchoedOrMinted(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "rid-from-caller")
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "rid-from-caller" {
		t.Fatalf("caller id must be echoed, got %q", got)
	}

	w = e.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestMetricsEndpointExposesServiceSeries(t *testing.T) {
	e := newTestEnv(t)
	// Drive one request through so the labeled series exist.
	wantStatus(t, e.do(t, http.MethodGet, "/api/health", "", nil), http.StatusOK)

	w := e.do(t, http.MethodGet, "/metrics", "", nil)
	wantStatus(t, w, http.StatusOK)
	body := w.Body.String()
	if !strings.Contains(body, "crm_http_requests_total") {
		t.Fatal("expected crm_http_requests_total in metrics output")
	}
	if !strings.Contains(body, "crm_http_request_duration_seconds") {
		t.Fatal("expected crm_http_request_duration_seconds in metrics output")
	}
}

func TestProtectedRoutesRejectMissingAndBadTokens(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/clients", "", nil)
	wantStatus(t, w, http.StatusUnauthorized)

	w = e.do(t, http.MethodGet, "/api/clients", "garbage", nil)
	wantStatus(t, w, http.StatusUnauthorized)

	expired := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "crm-test", TTL: -2 * time.Minute}
	tok, err := expired.Issue(auth.Identity{ID: "user_x", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w = e.do(t, http.MethodGet, "/api/clients", tok, nil)
	wantStatus(t, w, http.StatusUnauthorized)
}
