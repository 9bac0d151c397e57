package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/services"
)

// maxDocumentBytes caps an uploaded document (100 MB).
const maxDocumentBytes = 100 << 20

// DocumentHandler serves document upload, download, search, deletion and
// entity linking.
type DocumentHandler struct {
	documents services.DocumentService
	logger    *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documents services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, logger: logger}
}

// RegisterRoutes registers the document handler's routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.Upload)
	mux.HandleFunc("GET /api/documents/search", h.Search)
	mux.HandleFunc("GET /api/documents/{id}", h.Download)
	mux.HandleFunc("DELETE /api/documents/{id}", h.Delete)
	mux.HandleFunc("POST /api/documents/{id}/relations", h.LinkEntity)
	mux.HandleFunc("GET /api/documents/{id}/relations", h.ListRelations)
}

// Upload handles POST /api/documents. Multipart form with a "file" part;
// optional "uploader_id" and "text" (extracted document text) fields.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "expected multipart form upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "missing file part")
		return
	}
	defer file.Close()

	uploaderID, _ := strconv.ParseInt(r.FormValue("uploader_id"), 10, 64)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := h.documents.Upload(r.Context(), header.Filename, uploaderID, file, contentType, r.FormValue("text"))
	if err != nil {
		h.logger.Error("document upload failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "upload_failed", "failed to store the document")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, doc); err != nil {
		h.logger.Error("Failed to encode document response", zap.Error(err))
	}
}

// Download handles GET /api/documents/{id}, streaming the stored blob.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.docID(w, r)
	if !ok {
		return
	}

	doc, body, err := h.documents.Get(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch the document")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.DocTitle+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("document download interrupted", zap.Int64("doc_id", docID), zap.Error(err))
	}
}

// Delete handles DELETE /api/documents/{id}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.docID(w, r)
	if !ok {
		return
	}

	if err := h.documents.Delete(r.Context(), docID); err != nil {
		h.writeServiceError(w, err, "failed to delete the document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/documents/search?q=...&limit=N.
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "q parameter is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := h.documents.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("document search failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "search_failed", "document search failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"hits": hits}); err != nil {
		h.logger.Error("Failed to encode search response", zap.Error(err))
	}
}

// LinkEntityRequest is the body of POST /api/documents/{id}/relations.
type LinkEntityRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	Confidence int    `json:"confidence"`
}

// LinkEntity handles POST /api/documents/{id}/relations.
func (h *DocumentHandler) LinkEntity(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.docID(w, r)
	if !ok {
		return
	}

	var req LinkEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.EntityType == "" || req.EntityID == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "entity_type and entity_id are required")
		return
	}

	rel, err := h.documents.LinkEntity(r.Context(), docID, req.EntityType, req.EntityID, req.Confidence)
	if err != nil {
		h.writeServiceError(w, err, "failed to link the document")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, rel); err != nil {
		h.logger.Error("Failed to encode relation response", zap.Error(err))
	}
}

// ListRelations handles GET /api/documents/{id}/relations.
func (h *DocumentHandler) ListRelations(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.docID(w, r)
	if !ok {
		return
	}

	rels, err := h.documents.ListRelations(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, err, "failed to list document relations")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"relations": rels}); err != nil {
		h.logger.Error("Failed to encode relations response", zap.Error(err))
	}
}

func (h *DocumentHandler) docID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	docID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || docID <= 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "document id must be a positive integer")
		return 0, false
	}
	return docID, true
}

func (h *DocumentHandler) writeServiceError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	h.logger.Error(message, zap.Error(err))
	_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", message)
}
