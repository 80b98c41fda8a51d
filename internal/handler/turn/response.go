package turn

import (
	"net/http"

	"github.com/zhouzirui/taleforge/internal/model/game"
)

// Images holds public URLs for the scene assets.
type Images struct {
	Environment string `json:"environment"`
	Item        string `json:"item"`
	Character   string `json:"character"`
}

// Response is the wire form of a turn.
type Response struct {
	SessionID string         `json:"sessionId"`
	Scenario  string         `json:"scenario"`
	Options   []string       `json:"options"`
	Images    Images         `json:"images"`
	OK        bool           `json:"ok"`
	ErrorKind game.ErrorKind `json:"errorKind,omitempty"`
}

// URLFunc maps an asset filename to the URL clients load it from.
type URLFunc func(filename string) string

// NewResponse converts a TurnResult, resolving asset filenames through url.
func NewResponse(result game.TurnResult, url URLFunc) Response {
	if url == nil {
		url = func(filename string) string { return filename }
	}
	return Response{
		SessionID: result.SessionID,
		Scenario:  result.Scenario,
		Options:   result.Options,
		Images: Images{
			Environment: url(result.Assets.Environment),
			Item:        url(result.Assets.Item),
			Character:   url(result.Assets.Character),
		},
		OK:        result.OK,
		ErrorKind: result.ErrorKind,
	}
}

// StatusCode maps a turn outcome onto an HTTP status.
func StatusCode(result game.TurnResult) int {
	switch {
	case result.OK:
		return http.StatusOK
	case result.ErrorKind == game.ErrorInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
