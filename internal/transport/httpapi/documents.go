package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lattica-ai/ragline/internal/domain"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing; larger
// payloads spill to temp files. The service enforces the real size limit.
const maxMultipartMemory = 32 << 20

type chunkResponse struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
	Text         string `json:"text"`
}

// uploadDocument handles POST /api/v1/collections/{collectionID}/documents.
// Expects a multipart form with a "file" part.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, `multipart form must carry a "file" part`)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read upload: "+err.Error())
		return
	}

	doc, err := s.documents.Upload(r.Context(), chi.URLParam(r, "collectionID"), header.Filename, data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// listDocuments handles GET /api/v1/collections/{collectionID}/documents.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": docs})
}

// getDocument handles GET /api/v1/documents/{documentID}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// processDocument handles POST /api/v1/documents/{documentID}/process.
// The run is asynchronous; 202 means queued, not finished.
func (s *Server) processDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if err := s.documents.Submit(r.Context(), documentID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"document_id": documentID,
		"status":      string(domain.StatusProcessing),
	})
}

// listChunks handles GET /api/v1/documents/{documentID}/chunks.
func (s *Server) listChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.documents.ListChunks(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		// A missing vector namespace means nothing was indexed yet.
		if errors.Is(err, domain.ErrIndexBackend) {
			writeJSON(w, http.StatusOK, map[string]any{"items": []chunkResponse{}})
			return
		}
		s.handleDomainError(w, err)
		return
	}

	items := make([]chunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = chunkResponse{
			ID:           c.ID,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			ChunkIndex:   c.Index,
			Text:         c.Text,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// deleteDocument handles DELETE /api/v1/documents/{documentID}.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), chi.URLParam(r, "documentID")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
