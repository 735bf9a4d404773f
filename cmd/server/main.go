// AutoFinance - conversational auto-loan intake server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/autofinance/internal/api"
	"github.com/ashureev/autofinance/internal/config"
	"github.com/ashureev/autofinance/internal/convlog"
	"github.com/ashureev/autofinance/internal/eligibility"
	"github.com/ashureev/autofinance/internal/engine"
	"github.com/ashureev/autofinance/internal/identity"
	"github.com/ashureev/autofinance/internal/metrics"
	"github.com/ashureev/autofinance/internal/middleware"
	"github.com/ashureev/autofinance/internal/orchestrator"
	"github.com/ashureev/autofinance/internal/policy"
	"github.com/ashureev/autofinance/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"checkpoint_backend", cfg.CheckpointBackend,
		"listing_backend", cfg.Listing.Backend,
		"classifier", cfg.Classifier.Strategy,
	)

	// Initialize dependencies.
	repo, err := openRepository(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize checkpoint store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Checkpoint store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Checkpoint store connected")

	policies, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		slog.Error("Failed to load lending policies", "error", err)
		os.Exit(1)
	}

	searcher, err := newSearcher(cfg)
	if err != nil {
		slog.Error("Failed to initialize listing search", "error", err)
		os.Exit(1)
	}

	classifier, closeClassifier, err := newClassifier(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize intent classifier", "error", err)
		os.Exit(1)
	}
	defer closeClassifier()

	conversationLogger, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	eng, err := engine.New(engine.Deps{
		Searcher:     searcher,
		Evaluator:    eligibility.NewEvaluator(policies, time.Now),
		Applications: repo,
		Metrics:      recorder,
		Logger:       logger,
	}, engine.Config{
		DefaultTenureMonths: cfg.Quote.DefaultTenureMonths,
		DownPaymentRatio:    cfg.Quote.DownPaymentRatio,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	})
	if err != nil {
		slog.Error("Failed to initialize phase engine", "error", err)
		os.Exit(1)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:      repo,
		Classifier: classifier,
		Engine:     eng,
		Metrics:    recorder,
		ConvLog:    conversationLogger,
		Logger:     logger,
	}, orchestrator.Config{ClassifierTimeout: cfg.Classifier.Timeout})
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	limiter := api.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	defer limiter.Stop()

	// Initialize handlers.
	chatHandler := api.NewHandler(api.Options{
		Chat:           orch,
		Applications:   repo,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Session-scoped routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		chatHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Start retention worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartRetentionWorker(ctx, repo, cfg.RetentionInterval, cfg.SessionRetention, func(removed int64) {
		slog.Info("Expired sessions removed", "count", removed)
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
