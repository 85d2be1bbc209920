package chat

import (
	"fmt"
	"strings"

	"github.com/lattica-ai/ragline/internal/vecindex"
)

// Default prompt texts, overridable via configuration.
const (
	defaultChatSystem = "You are a helpful assistant. Answer clearly and concisely."

	defaultRAGSystem = "You are a helpful assistant. Answer the question using only the " +
		"provided document excerpts. If the excerpts do not contain the answer, say so."

	defaultRAGPattern = "Answer the question based on the following document excerpts.\n\n" +
		"{context}\n\nQuestion: {question}"
)

// buildContext renders retrieved chunks as labelled excerpts.
func buildContext(hits []vecindex.SearchHit) string {
	parts := make([]string, len(hits))
	for i, hit := range hits {
		parts[i] = fmt.Sprintf("Document %d (%s):\n%s", i+1, hit.Chunk.DocumentName, hit.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

// interpolate fills the {context} and {question} placeholders.
func interpolate(pattern, context, question string) string {
	out := strings.ReplaceAll(pattern, "{context}", context)
	return strings.ReplaceAll(out, "{question}", question)
}
