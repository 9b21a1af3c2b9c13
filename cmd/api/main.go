// Package main is the entry point for the Tidepool API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wrenlabs/tidepool/internal/api"
	"github.com/wrenlabs/tidepool/internal/auth"
	"github.com/wrenlabs/tidepool/internal/config"
	"github.com/wrenlabs/tidepool/internal/db"
	"github.com/wrenlabs/tidepool/internal/health"
	"github.com/wrenlabs/tidepool/internal/middleware"
	"github.com/wrenlabs/tidepool/internal/ranking"
	"github.com/wrenlabs/tidepool/internal/recs"
	"github.com/wrenlabs/tidepool/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Tidepool API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing provider (inert when disabled)
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "tidepool-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Prometheus registry with process and Go runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}

	recsMetrics := recs.NewMetrics()
	if err := recsMetrics.Register(registry); err != nil {
		logger.Error("failed to register recommendation metrics", "error", err)
		os.Exit(1)
	}

	// Shared Redis client for the follow cache, rate limiting, and
	// readiness checks. Optional.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	// Candidate repository: Postgres when configured, in-memory otherwise
	var repo recs.CandidateRepository
	var pool *sql.DB
	if cfg.DatabaseURL != "" {
		pool, err = db.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = recs.NewPostgresRepository(pool)
		logger.Info("using postgres candidate repository")
	} else {
		repo = recs.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory candidate repository")
	}

	if redisClient != nil {
		ttl := recs.DefaultFollowCacheTTL
		if cfg.FollowCacheTTLSeconds > 0 {
			ttl = time.Duration(cfg.FollowCacheTTLSeconds) * time.Second
		}
		repo = recs.NewFollowCache(repo, redisClient, ttl, logger)
		logger.Info("follow-set cache enabled", "ttl", ttl)
	}

	// Scoring weights, optionally calibrated from a JSON file. A broken
	// calibration file falls back to defaults rather than blocking startup.
	weights, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("calibration load failed, using default weights", "error", err)
	}

	recommender := recs.NewRecommender(repo, weights, ranking.NewRandSource(), recs.Config{
		FetchMultiplier: cfg.RecsFetchMultiplier,
		FetchCeiling:    cfg.RecsFetchCeiling,
		DefaultLimit:    cfg.RecsDefaultLimit,
		MaxLimit:        cfg.RecsMaxLimit,
		FetchTimeout:    time.Duration(cfg.RecsFetchTimeoutMS) * time.Millisecond,
		Logger:          logger,
		Metrics:         recsMetrics,
	})

	// JWT service, dual-key when a secret rotation is in progress
	currentSecret, previousSecret := cfg.GetJWTSecrets()
	var jwtService *auth.JWTService
	if previousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(currentSecret, previousSecret)
		logger.Info("jwt rotation window active, previous secret still accepted")
	} else {
		jwtService = auth.NewJWTService(currentSecret)
	}

	// Handlers
	recHandlers := api.NewRecommendationHandlers(recommender, logger)
	healthConfig := api.HealthHandlersConfig{}
	if pool != nil {
		healthConfig.DBChecker = health.NewDBChecker(pool)
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	// Rate limiting: Redis-backed fixed window when Redis is available,
	// per-process otherwise
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
		rateLimitStore = store
	}

	authenticate := middleware.Auth(jwtService)
	recsLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultRecsLimit(), middleware.UserKeyFunc())

	mux := http.NewServeMux()
	mux.Handle("/recommendations/posts", authenticate(recsLimiter(http.HandlerFunc(recHandlers.PostFeed))))
	mux.Handle("/recommendations/users", authenticate(recsLimiter(http.HandlerFunc(recHandlers.UserSuggestions))))
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Development token endpoint, never mounted in production
	if cfg.Env != "production" {
		authHandlers := api.NewAuthHandlers(jwtService, logger)
		mux.HandleFunc("/auth/token", authHandlers.DevToken)
		logger.Warn("development token endpoint enabled at /auth/token")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"tidepool-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	globalLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())

	// Middleware chain, outermost first:
	// RequestID -> Logging -> HTTPMetrics -> Tracing -> CORS -> global rate limit
	var handler http.Handler = globalLimiter(mux)
	if cfg.CORSAllowedOrigins != "" {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		})(handler)
	}
	if tracingProvider.IsEnabled() {
		handler = middleware.Tracing("tidepool-api")(handler)
	}
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// splitOrigins parses a comma-separated origin list, trimming whitespace
// and dropping empty entries.
func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
