package chat

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable history entry.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
