package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ognjhunt/blueprintxr/internal/adapter/memory"
	"github.com/ognjhunt/blueprintxr/internal/adapter/simengine"
	"github.com/ognjhunt/blueprintxr/internal/app"
	"github.com/ognjhunt/blueprintxr/internal/blueprint"
	"github.com/ognjhunt/blueprintxr/internal/platform/config"
)

type testServer struct {
	srv    *Server
	engine *simengine.Engine
	repo   *blueprint.Repository
	docs   *memory.DocumentStore
}

type testOption func(*testServerConfig)

type testServerConfig struct {
	cfg          *config.Config
	healthChecks []HealthCheck
	maxScreens   int
}

func withHealthChecks(checks ...HealthCheck) testOption {
	return func(c *testServerConfig) { c.healthChecks = checks }
}

func withMaxScreens(n int) testOption {
	return func(c *testServerConfig) { c.maxScreens = n }
}

func withRateLimit(perSecond float64, burst int) testOption {
	return func(c *testServerConfig) {
		c.cfg.APIRateLimit = perSecond
		c.cfg.APIRateBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...testOption) *testServer {
	t.Helper()

	tc := &testServerConfig{
		cfg: &config.Config{
			AppEnv:       "development",
			Port:         "0",
			AppURL:       "http://localhost:8080",
			APIRateLimit: 1000,
			APIRateBurst: 1000,
		},
		maxScreens: 4,
	}
	for _, opt := range opts {
		opt(tc)
	}

	engine := simengine.New()
	docs := memory.NewDocumentStore()
	repo := blueprint.NewRepository(docs)
	screens := NewScreens(func(uuid.UUID) *app.Coordinator {
		return app.New(engine, repo, app.DefaultConfig())
	}, tc.maxScreens, nil)
	t.Cleanup(screens.CloseAll)

	srv := NewServer(tc.cfg, Deps{
		Screens:      screens,
		Containers:   repo,
		Models:       repo,
		HealthChecks: tc.healthChecks,
	})
	return &testServer{srv: srv, engine: engine, repo: repo, docs: docs}
}

// do sends a request through the full middleware chain.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = testRemoteAddr
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// openScreen opens a screen and initializes its AR session.
func (ts *testServer) openScreen(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/screens", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[map[string]string](t, rec)["id"]

	rec = ts.do(t, http.MethodPost, "/screens/"+id+"/init", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}
