// Package message defines the canonical conversation message types used
// across the codebase. All packages import from here to avoid circular
// dependencies.
package message

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a message. It is a closed set: anything
// other than USER or ASSISTANT is rejected at the serialization boundary.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// UnmarshalJSON rejects unknown role values instead of passing them
// through silently.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("unknown message role %q", s)
	}
	*r = role
	return nil
}

// Message is a single turn in a conversation. Owned exclusively by its
// conversation; insertion order is significant.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Thinking  string `json:"thinking,omitempty"`
	Action    string `json:"action,omitempty"`
	ImagePath string `json:"imagePath,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// UserMessage creates a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// AssistantMessage creates an assistant message carrying the model's
// reasoning trace, the serialized action it took, and (optionally) the
// path to the annotated screenshot for this turn.
func AssistantMessage(content, thinking, action, imagePath string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		Content:   content,
		Thinking:  thinking,
		Action:    action,
		ImagePath: imagePath,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewID creates a short random identifier.
func NewID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FirstUserContent returns the content of the first USER message, or ""
// if there is none. Used for title derivation.
func FirstUserContent(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == RoleUser && m.Content != "" {
			return m.Content
		}
	}
	return ""
}
