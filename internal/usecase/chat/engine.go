// Package chat implements the streaming answer engine: plain chat against
// the configured model, or retrieval-grounded answering over a collection's
// indexed chunks.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/metrics"
)

// Generation bounds. Requested values are clamped, never rejected.
const (
	MinMaxTokens   = 1
	MaxMaxTokens   = 10000
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// Options configure prompting and retrieval.
type Options struct {
	Temperature     float64
	MaxTokens       int
	TopK            int
	ChatSystemText  string
	RAGSystemText   string
	RAGQueryPattern string
}

// Engine answers questions over conversations, streaming events.
type Engine struct {
	convs ConversationRepository
	colls CollectionReader
	index Retriever
	model Model
	opts  Options
	log   *zap.Logger
}

// New creates the answer engine. Empty prompt texts fall back to defaults.
func New(
	convs ConversationRepository,
	colls CollectionReader,
	index Retriever,
	model Model,
	opts Options,
	log *zap.Logger,
) *Engine {
	if opts.ChatSystemText == "" {
		opts.ChatSystemText = defaultChatSystem
	}
	if opts.RAGSystemText == "" {
		opts.RAGSystemText = defaultRAGSystem
	}
	if opts.RAGQueryPattern == "" {
		opts.RAGQueryPattern = defaultRAGPattern
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}

	return &Engine{
		convs: convs,
		colls: colls,
		index: index,
		model: model,
		opts:  opts,
		log:   log.Named("chat"),
	}
}

// AskRequest is one question against a conversation.
type AskRequest struct {
	// ConversationID continues an existing conversation. Empty starts a new
	// one lazily.
	ConversationID string
	// CollectionID grounds the answer on a collection's chunks. Empty means
	// plain chat. Ignored when continuing a conversation already bound to a
	// collection.
	CollectionID string
	Question     string
	// MaxTokens overrides the configured default when positive.
	MaxTokens int
}

// ClampMaxTokens bounds a requested token budget.
func ClampMaxTokens(n int) int {
	if n < MinMaxTokens {
		return MinMaxTokens
	}
	if n > MaxMaxTokens {
		return MaxMaxTokens
	}
	return n
}

// ClampTemperature bounds a configured sampling temperature.
func ClampTemperature(t float64) float64 {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// Ask answers a question, streaming events on the returned channel.
//
// Validation and persistence of the user message happen synchronously, so a
// non-nil error means nothing was stored and no stream exists. After a nil
// return the channel delivers start, content events, then done or error, and
// closes. The assistant message is persisted only on graceful completion.
func (e *Engine) Ask(ctx context.Context, req AskRequest) (<-chan Event, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrValidation)
	}

	conv, err := e.resolveConversation(ctx, req, question)
	if err != nil {
		return nil, err
	}

	mode := "chat"
	if conv.CollectionID != "" {
		mode = "rag"
	}

	userMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        question,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.convs.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := e.convs.LastMessages(ctx, conv.ID, domain.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	system, history, sources, err := e.preparePrompt(ctx, conv, question, history)
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go e.generate(ctx, conv, mode, system, question, history, sources, req.MaxTokens, events)
	return events, nil
}

// resolveConversation loads the target conversation or creates one lazily,
// titled from the first question.
func (e *Engine) resolveConversation(
	ctx context.Context, req AskRequest, question string,
) (domain.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := e.convs.Get(ctx, req.ConversationID)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
		}
		return conv, nil
	}

	if req.CollectionID != "" {
		if _, err := e.colls.Get(ctx, req.CollectionID); err != nil {
			return domain.Conversation{}, fmt.Errorf("get collection: %w", err)
		}
	}

	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:           uuid.NewString(),
		CollectionID: req.CollectionID,
		Title:        domain.AutoTitle(question),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.convs.Create(ctx, conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// preparePrompt picks the system text and, in grounded mode, replaces the
// trailing user message with the retrieval-augmented prompt. The persisted
// message keeps the raw question; only the model sees the interpolation.
func (e *Engine) preparePrompt(
	ctx context.Context, conv domain.Conversation, question string, history []domain.Message,
) (string, []domain.Message, []Source, error) {
	if conv.CollectionID == "" {
		return e.opts.ChatSystemText, history, nil, nil
	}

	hits, err := e.index.Search(
		ctx, domain.VectorCollectionName(conv.CollectionID), question, e.opts.TopK, nil)
	if err != nil {
		return "", nil, nil, fmt.Errorf("retrieve chunks: %w", err)
	}
	metrics.RetrievedChunks.Observe(float64(len(hits)))

	sources := make([]Source, len(hits))
	for i, hit := range hits {
		sources[i] = Source{
			ChunkID:      hit.Chunk.ID,
			DocumentID:   hit.Chunk.DocumentID,
			DocumentName: hit.Chunk.DocumentName,
			Score:        hit.Score,
		}
	}

	augmented := interpolate(e.opts.RAGQueryPattern, buildContext(hits), question)
	prompt := make([]domain.Message, len(history))
	copy(prompt, history)
	prompt[len(prompt)-1] = domain.Message{
		Role:    domain.RoleUser,
		Content: augmented,
	}
	return e.opts.RAGSystemText, prompt, sources, nil
}

// generate runs the model stream and owns the event channel.
func (e *Engine) generate(
	ctx context.Context,
	conv domain.Conversation,
	mode, system, question string,
	history []domain.Message,
	sources []Source,
	maxTokens int,
	events chan<- Event,
) {
	defer close(events)
	start := time.Now()

	if maxTokens <= 0 {
		maxTokens = e.opts.MaxTokens
	}
	maxTokens = ClampMaxTokens(maxTokens)
	temperature := ClampTemperature(e.opts.Temperature)

	if !e.send(ctx, events, Event{Type: EventStart, ConversationID: conv.ID}) {
		metrics.StreamsTotal.WithLabelValues("canceled", mode).Inc()
		return
	}

	answer, err := e.model.Stream(ctx, system, history, temperature, maxTokens,
		func(cbCtx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !e.send(cbCtx, events, Event{Type: EventContent, Content: string(chunk)}) {
				return cbCtx.Err()
			}
			return nil
		})
	if err != nil {
		e.log.Warn("generation failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		metrics.StreamsTotal.WithLabelValues("error", mode).Inc()
		e.send(ctx, events, Event{Type: EventError, Error: err.Error()})
		return
	}

	// Persist the assistant turn off the request context so a disconnect
	// after generation does not lose the answer.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assistantMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        answer,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.convs.AppendMessage(persistCtx, assistantMsg); err != nil {
		metrics.StreamsTotal.WithLabelValues("error", mode).Inc()
		e.send(ctx, events, Event{Type: EventError, Error: "failed to persist answer"})
		return
	}

	conv.UpdatedAt = time.Now().UTC()
	if err := e.convs.Update(persistCtx, conv); err != nil {
		e.log.Warn("bump conversation failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	metrics.StreamsTotal.WithLabelValues("done", mode).Inc()
	metrics.StreamDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	e.send(ctx, events, Event{
		Type:           EventDone,
		ConversationID: conv.ID,
		Question:       question,
		ChunksUsed:     len(sources),
		Sources:        sources,
	})
}

// send delivers an event unless the consumer is gone.
func (e *Engine) send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetConversation returns a conversation record.
func (e *Engine) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	conv, err := e.convs.Get(ctx, id)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns all conversations, most recent first.
func (e *Engine) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	convs, err := e.convs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Messages returns a conversation's full message log.
func (e *Engine) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if _, err := e.convs.Get(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	msgs, err := e.convs.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its messages.
func (e *Engine) DeleteConversation(ctx context.Context, id string) error {
	if err := e.convs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
