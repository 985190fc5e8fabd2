package conversation

import (
	"time"

	"github.com/droidpilot/droidpilot/internal/message"
)

const (
	// DefaultTitle is the placeholder a conversation carries until the
	// first user message names it.
	DefaultTitle = "New conversation"

	// MaxTitleRunes is the maximum length of a derived title.
	MaxTitleRunes = 20
)

// Conversation is one task exchange: the ordered messages plus the
// metadata shown in pickers.
type Conversation struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []message.Message `json:"messages"`
	CreatedAt int64             `json:"createdAt"`
	UpdatedAt int64             `json:"updatedAt"`
}

// New returns an empty conversation with the placeholder title.
func New() *Conversation {
	now := time.Now().UnixMilli()
	return &Conversation{
		ID:        message.NewID(),
		Title:     DefaultTitle,
		Messages:  []message.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// deriveTitle picks a title from the first user message. It only fires
// while the title is still the placeholder, so a user rename sticks.
func (c *Conversation) deriveTitle() {
	if c.Title != DefaultTitle {
		return
	}
	content := message.FirstUserContent(c.Messages)
	if content == "" {
		return
	}
	runes := []rune(content)
	if len(runes) > MaxTitleRunes {
		runes = runes[:MaxTitleRunes]
	}
	c.Title = string(runes)
}
