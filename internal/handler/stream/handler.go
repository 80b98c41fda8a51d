package stream

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	turnHandler "github.com/zhouzirui/taleforge/internal/handler/turn"
	"github.com/zhouzirui/taleforge/internal/logger"
	"github.com/zhouzirui/taleforge/internal/model/game"
	"github.com/zhouzirui/taleforge/pkg/utils"
)

// DefaultHeartbeat is the interval between keep-alive events while a turn runs.
const DefaultHeartbeat = 8 * time.Second

// Handler plays a turn and reports its progress as Server-Sent Events.
type Handler struct {
	player    turnHandler.Player
	url       turnHandler.URLFunc
	heartbeat time.Duration
	logger    *zap.Logger
}

// New creates a stream handler. A non-positive heartbeat uses DefaultHeartbeat.
func New(player turnHandler.Player, url turnHandler.URLFunc, heartbeat time.Duration, l *zap.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{player: player, url: url, heartbeat: heartbeat, logger: logger.OrNop(l)}
}

// RegisterRoutes mounts the stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse is the payload of start, heartbeat and end events.
type StreamResponse struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
	Time      string `json:"time,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	query := r.URL.Query()
	action := query.Get("action")
	if strings.TrimSpace(action) == "" {
		action = query.Get("choice")
	}

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		_ = utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	log := h.logger.With(zap.String("session_id", sessionID))

	if err := sse.Event("start", StreamResponse{Event: "start", SessionID: sessionID, Message: "turn accepted"}); err != nil {
		log.Warn("failed to open stream", zap.Error(err))
		return
	}

	done := make(chan game.TurnResult, 1)
	go func() {
		done <- h.player.PlayTurn(ctx, sessionID, action)
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stream closed by client")
			return
		case t := <-ticker.C:
			_ = sse.Event("heartbeat", StreamResponse{
				Event:     "heartbeat",
				SessionID: sessionID,
				Message:   "awaiting narrator",
				Time:      t.UTC().Format(time.RFC3339),
			})
		case result := <-done:
			if err := sse.Event("turn", turnHandler.NewResponse(result, h.url)); err != nil {
				log.Warn("failed to send turn", zap.Error(err))
				return
			}
			_ = sse.Event("end", StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
			return
		}
	}
}
