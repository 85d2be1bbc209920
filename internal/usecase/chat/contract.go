package chat

import (
	"context"

	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/vecindex"
)

// ConversationRepository is the storage contract for conversations and
// their message logs.
type ConversationRepository interface {
	Create(ctx context.Context, conv domain.Conversation) error
	Get(ctx context.Context, id string) (domain.Conversation, error)
	List(ctx context.Context) ([]domain.Conversation, error)
	Update(ctx context.Context, conv domain.Conversation) error
	Delete(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg domain.Message) error
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)
	LastMessages(ctx context.Context, conversationID string, n int) ([]domain.Message, error)
}

// CollectionReader verifies grounding collections exist.
type CollectionReader interface {
	Get(ctx context.Context, id string) (domain.Collection, error)
}

// Retriever searches the vector index for grounding chunks.
type Retriever interface {
	Search(ctx context.Context, collection, query string, k int, filter map[string]string) ([]vecindex.SearchHit, error)
}

// Model streams chat completions.
type Model interface {
	Stream(
		ctx context.Context,
		system string,
		history []domain.Message,
		temperature float64,
		maxTokens int,
		onDelta func(ctx context.Context, chunk []byte) error,
	) (string, error)
}
