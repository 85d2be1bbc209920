package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	collectionuc "github.com/lattica-ai/ragline/internal/usecase/collection"
)

type createCollectionRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type updateCollectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// createCollection handles POST /api/v1/collections.
func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	col, err := s.collections.Create(r.Context(), collectionuc.CreateParams{
		Name:         req.Name,
		Description:  req.Description,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, col)
}

// listCollections handles GET /api/v1/collections.
func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": cols})
}

// getCollection handles GET /api/v1/collections/{collectionID}.
func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.collections.Get(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// updateCollection handles PATCH /api/v1/collections/{collectionID}.
// Chunking parameters are immutable and not part of the request.
func (s *Server) updateCollection(w http.ResponseWriter, r *http.Request) {
	var req updateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	col, err := s.collections.Update(r.Context(), chi.URLParam(r, "collectionID"), collectionuc.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// deleteCollection handles DELETE /api/v1/collections/{collectionID}.
func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Delete(r.Context(), chi.URLParam(r, "collectionID")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
