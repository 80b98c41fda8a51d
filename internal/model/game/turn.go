package game

import "github.com/zhouzirui/taleforge/internal/model/asset"

// ErrorKind classifies a failed turn for the caller.
type ErrorKind string

const (
	ErrorInvalidInput        ErrorKind = "invalid_input"
	ErrorUpstreamUnavailable ErrorKind = "upstream_unavailable"
)

// ParsedResponse is the normalized form of one narrator reply.
type ParsedResponse struct {
	Scenario string   `json:"scenario"`
	Options  []string `json:"options"`
	// Degraded is set when options had to be recovered from prose or padded
	// with fallbacks.
	Degraded bool `json:"-"`
}

// TurnResult is what one call to the turn engine yields.
type TurnResult struct {
	SessionID string    `json:"sessionId"`
	Scenario  string    `json:"scenario"`
	Options   []string  `json:"options"`
	Assets    asset.Set `json:"assets"`
	OK        bool      `json:"ok"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}
