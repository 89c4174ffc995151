package models

// Role identifies who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleNotice marks messages produced by the system itself: scan placeholders,
	// receipt results and error notices.
	RoleNotice Role = "notice"
)

// ChatMessage is one entry of the session transcript.
// Messages are never mutated or reordered once stored.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}
