package viewer

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for viewer session endpoints
type Handler struct {
	service *Service
	blobs   *BlobStore
	log     zerolog.Logger
}

// NewHandler creates a new viewer handler
func NewHandler(service *Service, blobs *BlobStore, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		blobs:   blobs,
		log:     log.With().Str("handler", "viewer").Logger(),
	}
}

// RegisterRoutes registers viewer routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/viewer", func(r chi.Router) {
		r.Post("/sessions", h.HandleOpenSession)
		r.Get("/sessions", h.HandleListSessions)
		r.Get("/sessions/{id}", h.HandleGetSession)
		r.Delete("/sessions/{id}", h.HandleCloseSession)
		r.Get("/blob/{id}", h.HandleServeBlob)
	})
}

// OpenSessionRequest is the body of POST /api/viewer/sessions.
type OpenSessionRequest struct {
	SourceRef string `json:"source_ref"`
	Basename  string `json:"basename"`
}

// HandleOpenSession handles POST /api/viewer/sessions
func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceRef == "" || req.Basename == "" {
		http.Error(w, "source_ref and basename are required", http.StatusBadRequest)
		return
	}

	snap := h.service.Open(r.Context(), req.SourceRef, req.Basename)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode session response")
	}
}

// HandleGetSession handles GET /api/viewer/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, ok := h.service.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode session response")
	}
}

// HandleCloseSession handles DELETE /api/viewer/sessions/{id}.
// Closing an unknown session still returns 204; teardown is idempotent.
func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.service.Teardown(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListSessions handles GET /api/viewer/sessions
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.Recent(0)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"sessions": snaps,
		"live":     h.service.LiveCount(),
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode sessions response")
	}
}

// HandleServeBlob handles GET /api/viewer/blob/{id}. This is what a blob URL
// issued by the store resolves to; a revoked blob is gone and returns 404.
func (h *Handler) HandleServeBlob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, mime, ok := h.blobs.Open(id)
	if !ok {
		http.Error(w, "Blob not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		h.log.Debug().Err(err).Str("blob_id", id).Msg("Failed to write blob response")
	}
}
