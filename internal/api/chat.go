package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/identity"
	"github.com/ashureev/autofinance/internal/interrupt"
	"github.com/ashureev/autofinance/internal/orchestrator"
	"github.com/ashureev/autofinance/internal/store"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// ChatResponse is returned for every completed turn.
type ChatResponse struct {
	Reply   string                    `json:"reply"`
	Phase   domain.Phase              `json:"phase"`
	Pending domain.PendingDecision    `json:"pending,omitempty"`
	Prompt  *interrupt.Prompt         `json:"prompt,omitempty"`
	State   *domain.ConversationState `json:"state,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// ApplicationView is the public part of a stored application.
type ApplicationView struct {
	ID                 string                   `json:"id"`
	Status             domain.ApplicationStatus `json:"status"`
	Vehicle            string                   `json:"vehicle"`
	MonthlyInstallment float64                  `json:"monthly_installment"`
	TenureMonths       int                      `json:"tenure_months"`
	CreatedAt          time.Time                `json:"created_at"`
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "session id is required")
		return
	}
	if !h.allow(sessionID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validate.Struct(req); err != nil {
		Error(w, http.StatusBadRequest, "message is required and must be at most 4000 characters")
		return
	}

	h.logger.Info("Chat request",
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"ip", identity.IPFromRequest(r),
	)

	status, body := h.turn(orchestrator.WithChannel(r.Context(), "http"), sessionID, req.Message)
	JSON(w, status, body)
}

// turn runs one message and maps the outcome to a status code and body.
func (h *Handler) turn(ctx context.Context, sessionID, message string) (int, ChatResponse) {
	resp, err := h.chat.Handle(ctx, sessionID, message)
	var collab *orchestrator.CollaboratorError
	switch {
	case err == nil:
		return http.StatusOK, toChatResponse(resp)
	case errors.As(err, &collab):
		body := toChatResponse(resp)
		body.Error = collab.Collaborator + " unavailable"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, orchestrator.ErrEmptySessionID):
		return http.StatusBadRequest, ChatResponse{Error: err.Error()}
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, ChatResponse{Error: "request canceled"}
	default:
		h.logger.Error("Chat turn failed", "session_id", sessionID, "error", err)
		return http.StatusInternalServerError, ChatResponse{Error: "internal error"}
	}
}

func toChatResponse(resp orchestrator.Response) ChatResponse {
	out := ChatResponse{Reply: resp.Reply, Prompt: resp.Prompt, State: resp.State}
	if resp.State != nil {
		out.Phase = resp.State.Phase
		out.Pending = resp.State.Pending
	}
	return out
}

// HandleSession handles GET /api/session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	state, err := h.chat.State(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, state)
}

// HandleApplication handles GET /api/applications/{id}.
func (h *Handler) HandleApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validate.Var(id, "required,uuid4"); err != nil {
		Error(w, http.StatusBadRequest, "invalid application id")
		return
	}

	app, err := h.apps.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "application not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load application", "application_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load application")
		return
	}

	JSON(w, http.StatusOK, ApplicationView{
		ID:                 app.ID,
		Status:             app.Status,
		Vehicle:            app.Vehicle.Summary(),
		MonthlyInstallment: app.Quote.MonthlyInstallment,
		TenureMonths:       app.Quote.TenureMonths,
		CreatedAt:          app.CreatedAt,
	})
}
