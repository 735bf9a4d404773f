// Package api provides HTTP handlers for the AutoFinance API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/orchestrator"
	"github.com/ashureev/autofinance/internal/store"
)

const (
	defaultMaxRequestBodySize = 16 * 1024
	maxMessageLength          = 4000
)

// ChatService runs conversation turns.
type ChatService interface {
	Handle(ctx context.Context, sessionID, raw string) (orchestrator.Response, error)
	State(ctx context.Context, sessionID string) (*domain.ConversationState, error)
}

// Options configures a Handler.
type Options struct {
	Chat           ChatService
	Applications   store.ApplicationStore
	RateLimiter    *RateLimiter
	AllowedOrigins []string
	MaxBodySize    int64
	Logger         *slog.Logger
}

// Handler serves the chat, session, and application endpoints.
type Handler struct {
	chat           ChatService
	apps           store.ApplicationStore
	limiter        *RateLimiter
	validate       *validator.Validate
	allowedOrigins []string
	maxBodySize    int64
	logger         *slog.Logger
}

// NewHandler creates a Handler. A nil RateLimiter disables throttling.
func NewHandler(opts Options) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxRequestBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Handler{
		chat:           opts.Chat,
		apps:           opts.Applications,
		limiter:        opts.RateLimiter,
		validate:       validator.New(),
		allowedOrigins: opts.AllowedOrigins,
		maxBodySize:    opts.MaxBodySize,
		logger:         opts.Logger,
	}
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/session", h.HandleSession)
		r.Get("/applications/{id}", h.HandleApplication)
	})
	r.Get("/ws/chat", h.HandleWebSocket)
}

func (h *Handler) allow(sessionID string) bool {
	return h.limiter == nil || h.limiter.Allow(sessionID)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports readiness of the checkpoint store.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(p Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{store: p, timeout: timeout}
}

// Ready returns the health status of the API and its dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["checkpoint_store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["checkpoint_store"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the readiness route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/ready", h.Ready)
}
