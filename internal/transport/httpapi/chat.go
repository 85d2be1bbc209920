package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/usecase/chat"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	CollectionID   string `json:"collection_id"`
	Question       string `json:"question"`
	MaxTokens      int    `json:"max_tokens"`
}

// chatStream handles POST /api/v1/chat, answering over SSE. Each stream event
// is one JSON-encoded data frame; a literal [DONE] frame follows graceful
// completion.
func (s *Server) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	events, err := s.chat.Ask(r.Context(), chat.AskRequest{
		ConversationID: req.ConversationID,
		CollectionID:   req.CollectionID,
		Question:       req.Question,
		MaxTokens:      req.MaxTokens,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	completed := false
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshal stream event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		if ev.Type == chat.EventDone {
			completed = true
		}
	}

	if completed {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// listConversations handles GET /api/v1/conversations.
func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chat.ListConversations(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": convs})
}

// getConversation handles GET /api/v1/conversations/{conversationID}.
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.GetConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// listMessages handles GET /api/v1/conversations/{conversationID}/messages.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.Messages(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": msgs})
}

// deleteConversation handles DELETE /api/v1/conversations/{conversationID}.
func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.DeleteConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
