package chat

// EventType discriminates stream events.
type EventType string

const (
	EventStart   EventType = "start"
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Source attributes one retrieved chunk used to ground an answer.
type Source struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
}

// Event is one element of an answer stream. The channel contract: exactly one
// start first; zero or more content; then either one done or one error, never
// both; the channel closes after the terminal event. The done event echoes
// the question and, in grounded mode, the sources used.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	Question       string    `json:"question,omitempty"`
	ChunksUsed     int       `json:"chunks_used,omitempty"`
	Sources        []Source  `json:"sources,omitempty"`
	Error          string    `json:"error,omitempty"`
}
