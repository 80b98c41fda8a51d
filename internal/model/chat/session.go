package chat

import "time"

// Session captures one player's conversation with the narrator.
type Session struct {
	ID           string    `json:"id"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Directive returns the stored system turn, if any.
func (s Session) Directive() (Turn, bool) {
	if len(s.Turns) > 0 && s.Turns[0].Role == RoleSystem {
		return s.Turns[0], true
	}
	return Turn{}, false
}

// LastTurn returns the most recent turn.
func (s Session) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}
