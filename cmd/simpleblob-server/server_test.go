package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/api"
	"github.com/tendant/simple-blob/pkg/simpleblob/config"
)

func newTestServer(t *testing.T, opts ...config.Option) *HTTPServer {
	t.Helper()
	cfg, err := config.Load(append([]config.Option{
		config.WithEnvironment("testing"),
		config.WithCDNBaseURL("https://cdn.example.com"),
	}, opts...)...)
	require.NoError(t, err)

	provider, err := cfg.BuildProvider(context.Background(),
		simpleblob.WithFailureSink(simpleblob.NewNoopFailureSink()))
	require.NoError(t, err)

	return NewHTTPServer(provider, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, ts *HTTPServer, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	ts.Routes().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rr := do(t, ts, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, ts, http.MethodGet, "/healthz/ready", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyBeforeInitialize(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	driver, err := cfg.BuildDriver()
	require.NoError(t, err)
	provider, err := simpleblob.New(simpleblob.WithDriver(driver))
	require.NoError(t, err)

	ts := NewHTTPServer(provider, cfg, nil)
	rr := do(t, ts, http.MethodGet, "/healthz/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "uninitialized")
}

func TestBlobRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	file := uuid.New().String() + ".txt"

	rr := do(t, ts, http.MethodPut, "/api/v1/blobs/"+file, []byte("hello blob"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var uploaded api.UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploaded))
	assert.Equal(t, int64(10), uploaded.Bytes)

	rr = do(t, ts, http.MethodGet, "/api/v1/blobs/"+file, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello blob", rr.Body.String())

	rr = do(t, ts, http.MethodGet, "/api/v1/blobs/"+file+"/url", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var urlResp api.URLResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &urlResp))
	assert.Equal(t, "https://cdn.example.com/media/"+file, urlResp.URL)

	rr = do(t, ts, http.MethodDelete, "/api/v1/blobs/"+file, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, ts, http.MethodHead, "/api/v1/blobs/"+file, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIKeyGroup(t *testing.T) {
	ts := newTestServer(t)
	ts.apiKey = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-KEY") != "secret" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	file := uuid.New().String() + ".txt"
	rr := do(t, ts, http.MethodHead, "/api/v1/blobs/"+file, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// health checks stay outside the protected group
	rr = do(t, ts, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewareStack(t *testing.T) {
	var logs bytes.Buffer
	ts := newTestServer(t)
	ts.logger = slog.New(slog.NewJSONHandler(&logs, nil))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	ts.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "req-42", record["request_id"])
	assert.Equal(t, "/healthz", record["path"])

	ts.apiKey = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("broken key store")
		})
	}
	rr = do(t, ts, http.MethodHead, "/api/v1/blobs/"+uuid.New().String()+".txt", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := do(t, ts, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	ts.metrics = true
	rr = do(t, ts, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDevelopmentCORS(t *testing.T) {
	ts := newTestServer(t, config.WithEnvironment("development"))

	rr := do(t, ts, http.MethodOptions, "/api/v1/blobs/"+uuid.New().String()+".txt", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(Env{LogFormat: "json", LogLevel: "debug"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger(Env{LogFormat: "text", LogLevel: "bogus"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestReadEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		env, err := readEnv("")
		require.NoError(t, err)
		assert.Equal(t, "text", env.LogFormat)
		assert.Equal(t, "info", env.LogLevel)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "server.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_format: json\nlog_level: debug\n"), 0o600))

		env, err := readEnv(path)
		require.NoError(t, err)
		assert.Equal(t, "json", env.LogFormat)
		assert.Equal(t, "debug", env.LogLevel)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := readEnv(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
