package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/observability"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CLOSING_TX_TIMEOUT", "5s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "3350", cfg.ClosingRetainedEarningsCode)
	require.Equal(t, "5s", cfg.ClosingTxTimeout.String())
	require.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{PGDSN: "postgres://x", ClosingRetainedEarningsCode: " "}
	require.Error(t, cfg.Validate())
	cfg.ClosingRetainedEarningsCode = "3350"
	require.NoError(t, cfg.Validate())
	cfg.PGDSN = ""
	require.Error(t, cfg.Validate())
}

func TestWorkspaceScope(t *testing.T) {
	ws := uuid.New()
	var seenWS uuid.UUID
	var seenActor string
	var scoped bool
	handler := WorkspaceScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenWS, scoped = shared.WorkspaceFromContext(r.Context())
		seenActor = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderWorkspace, ws.String())
	req.Header.Set(HeaderActor, "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, scoped)
	require.Equal(t, ws, seenWS)
	require.Equal(t, "alice", seenActor)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, scoped)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderWorkspace, "acme")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(RouterParams{
		Logger:  newLogger(&Config{LogFormat: "json"}, &buf),
		Config:  &Config{AppEnv: "test"},
		Metrics: observability.NewMetrics(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `ledger_http_requests_total{code="200",route="/healthz"} 1`)
}
