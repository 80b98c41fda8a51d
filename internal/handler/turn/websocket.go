package turn

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadLimit    = 16 << 10
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type inboundAction struct {
	Action string `json:"action"`
	Choice string `json:"choice"`
}

type wsError struct {
	Error string `json:"error"`
}

// handleWebSocket plays one turn per inbound frame. Frames on a connection are
// handled in order, so a socket never has two turns in flight.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	log := h.logger.With(zap.String("session_id", sessionID))
	log.Info("websocket opened")
	ctx := r.Context()

	for {
		var msg inboundAction
		if err := conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				if err := h.write(conn, wsError{Error: "invalid message"}); err != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", zap.Error(err))
			} else {
				log.Info("websocket closed")
			}
			return
		}

		action := msg.Action
		if strings.TrimSpace(action) == "" {
			action = msg.Choice
		}
		result := h.player.PlayTurn(ctx, sessionID, action)
		if err := h.write(conn, NewResponse(result, h.url)); err != nil {
			log.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h *Handler) write(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
