package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/ashureev/autofinance/internal/identity"
	"github.com/ashureev/autofinance/internal/orchestrator"
)

// wsMessage is an inbound frame. Plain text frames are read as the message itself.
type wsMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HandleWebSocket upgrades GET /ws/chat. Each text frame is one turn and each
// reply is a JSON ChatResponse frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "session id is required")
		return
	}
	h.logger.Info("WebSocket connection request", "session_id", sessionID, "ip", identity.IPFromRequest(r))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()
	ws.SetReadLimit(h.maxBodySize)

	ctx := orchestrator.WithChannel(r.Context(), "ws")
	h.readLoop(ctx, ws, sessionID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		message := strings.TrimSpace(string(data))
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			if msg.Type == "ping" {
				if err := h.writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
					return
				}
				continue
			}
			message = strings.TrimSpace(msg.Message)
		}

		var body ChatResponse
		switch {
		case message == "" || len(message) > maxMessageLength:
			body = ChatResponse{Error: "message is required and must be at most 4000 characters"}
		case !h.allow(sessionID):
			body = ChatResponse{Error: "rate limit exceeded"}
		default:
			_, body = h.turn(ctx, sessionID, message)
		}
		if err := h.writeJSON(ctx, ws, body); err != nil {
			h.logger.Debug("Failed to write websocket reply", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *Handler) originPatterns() []string {
	var out []string
	for _, o := range h.allowedOrigins {
		if o == "*" {
			return []string{"*"}
		}
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, o)
	}
	return out
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
