package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/taleforge/internal/model/chat"
	chatService "github.com/zhouzirui/taleforge/internal/service/chat"
	"github.com/zhouzirui/taleforge/pkg/utils"
)

// Handler exposes session lifecycle endpoints.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a session handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/history", h.handleHistory)
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type historyResponse struct {
	ID           string      `json:"id"`
	Turns        []chat.Turn `json:"turns"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActiveAt time.Time   `json:"lastActiveAt"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		_ = utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.RespondJSON(w, http.StatusCreated, sessionResponse{ID: session.ID, CreatedAt: session.CreatedAt})
}

// handleHistory returns the player-visible turns; the narrator directive is
// omitted.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		_ = utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, chatService.ErrSessionRequired):
		_ = utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		_ = utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	turns := make([]chat.Turn, 0, len(session.Turns))
	for _, turn := range session.Turns {
		if turn.Role != chat.RoleSystem {
			turns = append(turns, turn)
		}
	}

	_ = utils.RespondJSON(w, http.StatusOK, historyResponse{
		ID:           session.ID,
		Turns:        turns,
		CreatedAt:    session.CreatedAt,
		LastActiveAt: session.LastActiveAt,
	})
}
