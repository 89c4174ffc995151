// Package chatlog holds the session transcript as an append-only value.
package chatlog

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitchat/internal/models"
)

// Log is an ordered, append-only list of chat messages. Append returns a new
// Log; existing values never observe later messages.
type Log struct {
	messages []models.ChatMessage
}

// New returns a log seeded with the given messages.
func New(messages ...models.ChatMessage) Log {
	return Log{messages: slices.Clone(messages)}
}

// Append returns a copy of l with msg at the end.
func (l Log) Append(msg models.ChatMessage) Log {
	// Clip forces a fresh backing array so l and the result never share one.
	return Log{messages: append(slices.Clip(l.messages), msg)}
}

// Messages returns the transcript in order.
func (l Log) Messages() []models.ChatMessage {
	return slices.Clone(l.messages)
}

// Len returns the number of messages.
func (l Log) Len() int {
	return len(l.messages)
}

// Last returns the most recent message.
func (l Log) Last() (models.ChatMessage, bool) {
	if len(l.messages) == 0 {
		return models.ChatMessage{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// NewMessage creates a message with a fresh ID, stamped with the current time.
func NewMessage(role models.Role, text string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}
