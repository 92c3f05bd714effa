package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/api"
	"github.com/tendant/simple-blob/pkg/simpleblob/config"
	"github.com/tendant/simple-blob/pkg/simpleblob/metrics"
)

// Env holds the process settings that are not part of the provider configuration
type Env struct {
	ApiKeySHA256 string `yaml:"api_key_sha256" env:"API_KEY_SHA256" env-default:"1"`
	LogFormat    string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

func main() {
	env, err := readEnv(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(env)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	providerOpts := []simpleblob.Option{simpleblob.WithLogger(logger)}
	var collector *metrics.Collector
	if serverConfig.EnableMetrics {
		collector, err = metrics.New(prometheus.DefaultRegisterer, serverConfig.Driver)
		if err != nil {
			logger.Error("Failed to register metrics", "err", err)
			os.Exit(1)
		}
		providerOpts = append(providerOpts, simpleblob.WithObserver(collector))
	}

	ctx := context.Background()
	provider, err := serverConfig.BuildProvider(ctx, providerOpts...)
	if err != nil {
		logger.Error("Failed to build provider", "err", err)
		os.Exit(1)
	}

	apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"key1": env.ApiKeySHA256,
		},
	})
	if err != nil {
		logger.Error("Failed initialize API Key middleware", "err", err)
		os.Exit(1)
	}

	server := NewHTTPServer(provider, serverConfig, logger)
	server.apiKey = apiKeyMiddleware
	server.metrics = collector != nil

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("Simple Blob Server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"driver", serverConfig.Driver,
			"container", serverConfig.ContainerName())

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}

// readEnv reads the process settings from the environment, or from path
// (YAML, overridden by the environment) when it is set.
func readEnv(path string) (Env, error) {
	var env Env
	if path != "" {
		return env, cleanenv.ReadConfig(path, &env)
	}
	return env, cleanenv.ReadEnv(&env)
}

func newLogger(env Env) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(env.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(env.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// HTTPServer exposes a blob provider over HTTP
type HTTPServer struct {
	provider simpleblob.Provider
	config   *config.ServerConfig
	logger   *slog.Logger

	apiKey  func(http.Handler) http.Handler
	metrics bool
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(provider simpleblob.Provider, serverConfig *config.ServerConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		provider: provider,
		config:   serverConfig,
		logger:   logger,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(api.NewMiddlewareChain(
		api.RequestIDMiddleware,
		api.LoggingMiddleware(s.logger),
		api.RecoveryMiddleware,
	).Wrap)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS for development
	if s.config != nil && s.config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	app.RoutesHealthz(r)
	r.Get("/healthz/ready", s.handleReady)

	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	blobs := api.NewBlobHandler(s.provider)
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.apiKey != nil {
				r.Use(s.apiKey)
			}
			r.Mount("/blobs", blobs.Routes())
		})
	})

	return r
}

// handleReady reports ready once the provider's resource chain is resolved
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	state := s.provider.State()
	if state != simpleblob.StateReady {
		http.Error(w, state.String(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
}
