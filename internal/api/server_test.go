package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrordapp/mirrord-server/internal/config"
	"github.com/mirrordapp/mirrord-server/internal/engine"
	"github.com/mirrordapp/mirrord-server/internal/logger"
	"github.com/mirrordapp/mirrord-server/internal/sse"
)

type testServer struct {
	*Server
	api     humatest.TestAPI
	cleanup func()
}

// setupTestServer creates a test server with all dependencies.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	// Create a no-op logger for tests (discards all logs).
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sseManager := sse.NewManager(slogger)
	sseHandler := sse.NewHandler(sseManager, slogger)

	eng := engine.New(logger.Discard(), sseManager)

	cfg := &config.Config{
		App: config.AppConfig{
			Environment: "development",
		},
		Server: config.ServerConfig{
			Name:          "Test Server",
			Port:          "8080",
			AdvertiseMDNS: false,
		},
	}

	s := NewServer(cfg, eng, sseHandler, sseManager, slogger)

	cleanup := func() {
		eng.Stop()
		s.limiter.Stop()
	}

	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.api),
		cleanup: cleanup,
	}
}

// syncDirs creates a populated source tree and an empty target tree.
func syncDirs(t *testing.T) (source, target string) {
	t.Helper()

	source = t.TempDir()
	target = t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(source, "player.gd"), []byte("extends Node\n"), 0o644))

	return source, target
}

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/health")

	assert.Equal(t, http.StatusOK, resp.Code)

	var healthResp HealthResponse
	err := json.Unmarshal(resp.Body.Bytes(), &healthResp)
	require.NoError(t, err)

	assert.Equal(t, "healthy", healthResp.Status)
	assert.Contains(t, healthResp.Components, "engine")
	assert.Contains(t, healthResp.Components, "sse")
	assert.Equal(t, "engine stopped", healthResp.Components["engine"].Message)
}

func TestGetInstance(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/instance")

	assert.Equal(t, http.StatusOK, resp.Code)

	var instance InstanceResponse
	err := json.Unmarshal(resp.Body.Bytes(), &instance)
	require.NoError(t, err)

	assert.Equal(t, "Test Server", instance.Name)
	assert.Equal(t, Version, instance.Version)
	assert.Equal(t, "stopped", instance.EngineState)
	assert.False(t, instance.AdvertiseMDNS)
}

func TestGetEngineStatus_Idle(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/engine")

	assert.Equal(t, http.StatusOK, resp.Code)

	var status engine.Status
	err := json.Unmarshal(resp.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, "stopped", status.State)
	assert.Empty(t, status.SourceDir)
	assert.Zero(t, status.QueueDepth)
}

func TestStartEngine_Lifecycle(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	source, target := syncDirs(t)

	body := map[string]any{
		"source_dir": source,
		"target_dir": target,
		"extensions": []string{".gd", ".tscn"},
	}

	resp := ts.api.Post("/api/v1/engine/start", body)
	require.Equal(t, http.StatusOK, resp.Code, "start failed: %s", resp.Body.String())

	assert.True(t, ts.Server.engine.IsRunning())

	// The initial scan shares the live queue, so the seeded file shows up
	// in the target without any further writes.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(target, "player.gd"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// A second start while running is a conflict.
	resp = ts.api.Post("/api/v1/engine/start", body)
	assert.Equal(t, http.StatusConflict, resp.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "CONFLICT", apiErr.Code)

	resp = ts.api.Post("/api/v1/engine/stop", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.Code)

	var status engine.Status
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	assert.Equal(t, "stopped", status.State)

	// Stopping an idle engine is a no-op, not an error.
	resp = ts.api.Post("/api/v1/engine/stop", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestStartEngine_InvalidConfig(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	target := t.TempDir()

	resp := ts.api.Post("/api/v1/engine/start", map[string]any{
		"source_dir": filepath.Join(target, "does-not-exist"),
		"target_dir": target,
		"extensions": []string{".gd"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.False(t, ts.Server.engine.IsRunning())
}

func TestStartEngine_OverlappingRoots(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	source, _ := syncDirs(t)
	nested := filepath.Join(source, "mirror")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	resp := ts.api.Post("/api/v1/engine/start", map[string]any{
		"source_dir": source,
		"target_dir": nested,
		"extensions": []string{".gd"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, ts.Server.engine.IsRunning())
}

func TestStartEngine_MissingFields(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/engine/start", map[string]any{
		"source_dir": "/tmp",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limiter := NewRateLimiter(1, time.Minute, 1)
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter, slogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "RATE_LIMITED", apiErr.Code)

	// A different client is unaffected.
	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/engine", nil)
	req2.RemoteAddr = "192.0.2.2:1234"

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.3"},
			want:       "198.51.100.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
