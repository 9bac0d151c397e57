package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/services"
)

// maxIngestBodyBytes caps an upload request body (50 MB).
const maxIngestBodyBytes = 50 << 20

// IngestRequest is an uploaded sheet: optional column order plus rows keyed
// by source header. Columns may be omitted; they are then derived from the
// rows.
type IngestRequest struct {
	Columns []string     `json:"columns,omitempty"`
	Rows    []models.Row `json:"rows"`
}

// IngestHandler accepts tabular uploads and hands them to the ingestion
// pipeline.
type IngestHandler struct {
	ingest services.IngestService
	logger *zap.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(ingest services.IngestService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, logger: logger}
}

// RegisterRoutes registers the ingest handler's routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest/tables", h.IngestTable)
}

// IngestTable handles POST /api/ingest/tables. It classifies the uploaded
// rows, loads them, and returns the batch report. A batch whose mapping
// failed still returns 200; the report carries the failure.
func (h *IngestHandler) IngestTable(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodyBytes)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a rows array")
		return
	}
	if len(req.Rows) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "rows must not be empty")
		return
	}

	table := models.NewTable(req.Columns, req.Rows)

	report, err := h.ingest.IngestTable(r.Context(), table)
	if err != nil {
		h.logger.Error("table ingestion failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "ingest_failed", "failed to process the uploaded table")
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode batch report", zap.Error(err))
	}
}
