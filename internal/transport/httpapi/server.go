// Package httpapi exposes the REST and SSE surface over chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/metrics"
	"github.com/lattica-ai/ragline/internal/usecase/chat"
	collectionuc "github.com/lattica-ai/ragline/internal/usecase/collection"
	"github.com/lattica-ai/ragline/internal/usecase/ingest"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeNotFound          = "not_found"
	codeAlreadyProcessing = "already_processing"
	codeUnsupportedFormat = "unsupported_format"
	codeEmbeddingProvider = "embedding_provider_error"
	codeIndexBackend      = "index_backend_error"
	codeInternalError     = "internal_error"
)

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// HealthChecker reports readiness of one dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server holds the use case services behind the HTTP surface.
type Server struct {
	collections   *collectionuc.Service
	documents     *ingest.Service
	chat          *chat.Engine
	checks        map[string]HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(
	collections *collectionuc.Service,
	documents *ingest.Service,
	chatEngine *chat.Engine,
	checks map[string]HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		collections: collections,
		documents:   documents,
		chat:        chatEngine,
		checks:      checks,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidChunkConfig, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrAlreadyProcessing, http.StatusConflict, codeAlreadyProcessing),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexBackend, http.StatusBadGateway, codeIndexBackend),
	}
	return s
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/health", s.healthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/collections", func(r chi.Router) {
			r.Post("/", s.createCollection)
			r.Get("/", s.listCollections)
			r.Route("/{collectionID}", func(r chi.Router) {
				r.Get("/", s.getCollection)
				r.Patch("/", s.updateCollection)
				r.Delete("/", s.deleteCollection)
				r.Post("/documents", s.uploadDocument)
				r.Get("/documents", s.listDocuments)
			})
		})

		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Get("/", s.getDocument)
			r.Delete("/", s.deleteDocument)
			r.Post("/process", s.processDocument)
			r.Get("/chunks", s.listChunks)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.listConversations)
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", s.getConversation)
				r.Delete("/", s.deleteConversation)
				r.Get("/messages", s.listMessages)
			})
		})

		r.Post("/chat", s.chatStream)
	})

	return r
}

// healthCheck reports readiness of the wired dependencies.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(r.Context()); err != nil {
			checks[name] = "unhealthy"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrValidation,
		domain.ErrInvalidChunkConfig,
		domain.ErrAlreadyProcessing,
		domain.ErrUnsupportedFormat,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexBackend,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
