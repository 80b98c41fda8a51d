package turn

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/logger"
	"github.com/zhouzirui/taleforge/internal/model/game"
	chatService "github.com/zhouzirui/taleforge/internal/service/chat"
	"github.com/zhouzirui/taleforge/pkg/utils"
)

// Player runs turns.
type Player interface {
	PlayTurn(ctx context.Context, sessionID, action string) game.TurnResult
}

// Handler serves turns over HTTP and websockets.
type Handler struct {
	player Player
	url    URLFunc
	logger *zap.Logger
}

// New creates a turn handler.
func New(player Player, url URLFunc, l *zap.Logger) *Handler {
	return &Handler{player: player, url: url, logger: logger.OrNop(l)}
}

// RegisterRoutes mounts the turn endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/turn", h.handleTurn)
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type turnRequest struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	// Choice is accepted for clients that post the picked option.
	Choice string `json:"choice"`
}

func (r turnRequest) action() string {
	if strings.TrimSpace(r.Action) != "" {
		return r.Action
	}
	return r.Choice
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload turnRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := strings.TrimSpace(payload.SessionID)
	if sessionID == "" {
		sessionID = chatService.NewSessionID()
	}

	result := h.player.PlayTurn(r.Context(), sessionID, payload.action())
	if err := utils.RespondJSON(w, StatusCode(result), NewResponse(result, h.url)); err != nil {
		h.logger.Warn("failed to write turn response", zap.String("session_id", sessionID), zap.Error(err))
	}
}
