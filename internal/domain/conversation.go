package domain

import "time"

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryWindow is how many trailing messages are loaded for prompt context.
const HistoryWindow = 10

// MaxTitleLen is the auto-title truncation length in characters.
const MaxTitleLen = 30

// Conversation is an ordered message log, optionally bound to a collection
// for grounded answering.
type Conversation struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id,omitempty"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one entry of a conversation's append-only log.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// AutoTitle derives a conversation title from the first user message:
// the first MaxTitleLen characters, with an ellipsis when truncated.
func AutoTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxTitleLen {
		return content
	}
	return string(runes[:MaxTitleLen]) + "..."
}
