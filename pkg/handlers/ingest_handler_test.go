package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

type mockIngestService struct {
	report *models.BatchReport
	err    error
	tables []models.Table
}

func (m *mockIngestService) IngestTable(ctx context.Context, table models.Table) (*models.BatchReport, error) {
	m.tables = append(m.tables, table)
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func newIngestMux(service *mockIngestService) *http.ServeMux {
	mux := http.NewServeMux()
	NewIngestHandler(service, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestIngestTable_ReturnsReport(t *testing.T) {
	service := &mockIngestService{report: &models.BatchReport{
		State:          models.BatchSingleTarget,
		Success:        true,
		TotalProcessed: 2,
	}}
	mux := newIngestMux(service)

	body := `{"columns": ["성명", "사번"], "rows": [
		{"성명": "김철수", "사번": "EMP-001"},
		{"성명": "이영희", "사번": "EMP-002"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/tables", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report models.BatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.TotalProcessed)

	require.Len(t, service.tables, 1)
	assert.Equal(t, []string{"성명", "사번"}, service.tables[0].Columns)
	assert.Len(t, service.tables[0].Rows, 2)
}

func TestIngestTable_DerivesColumnsWhenOmitted(t *testing.T) {
	service := &mockIngestService{report: &models.BatchReport{Success: true}}
	mux := newIngestMux(service)

	body := `{"rows": [{"성명": "김철수", "사번": "EMP-001"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/tables", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, service.tables, 1)
	assert.ElementsMatch(t, []string{"성명", "사번"}, service.tables[0].Columns)
}

func TestIngestTable_RejectsInvalidBody(t *testing.T) {
	mux := newIngestMux(&mockIngestService{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "certainly not json"},
		{"empty rows", `{"rows": []}`},
		{"missing rows", `{"columns": ["성명"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ingest/tables", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestIngestTable_ServiceErrorIs500(t *testing.T) {
	service := &mockIngestService{err: errors.New("database down")}
	mux := newIngestMux(service)

	body := `{"rows": [{"성명": "김철수"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/tables", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The wire error must not leak internals.
	assert.NotContains(t, rec.Body.String(), "database down")
}
