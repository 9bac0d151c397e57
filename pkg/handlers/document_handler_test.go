package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/search"
)

type mockDocumentService struct {
	doc       *models.Document
	body      string
	relation  *models.DocumentRelation
	relations []*models.DocumentRelation
	hits      []search.Hit
	err       error

	uploadedTitle string
	uploadedText  string
	deletedID     int64
	linkedType    string
	linkedID      int64
}

func (m *mockDocumentService) Upload(ctx context.Context, title string, uploaderID int64, content io.Reader, contentType string, text string) (*models.Document, error) {
	m.uploadedTitle = title
	m.uploadedText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *mockDocumentService) Get(ctx context.Context, docID int64) (*models.Document, io.ReadCloser, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.doc, io.NopCloser(strings.NewReader(m.body)), nil
}

func (m *mockDocumentService) Delete(ctx context.Context, docID int64) error {
	m.deletedID = docID
	return m.err
}

func (m *mockDocumentService) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func (m *mockDocumentService) LinkEntity(ctx context.Context, docID int64, entityType string, entityID int64, confidence int) (*models.DocumentRelation, error) {
	m.linkedType = entityType
	m.linkedID = entityID
	if m.err != nil {
		return nil, m.err
	}
	return m.relation, nil
}

func (m *mockDocumentService) ListRelations(ctx context.Context, docID int64) ([]*models.DocumentRelation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.relations, nil
}

func newDocumentMux(service *mockDocumentService) *http.ServeMux {
	mux := http.NewServeMux()
	NewDocumentHandler(service, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("text", "매출 실적 요약"))
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func TestDocumentUpload(t *testing.T) {
	service := &mockDocumentService{doc: &models.Document{DocID: 7, DocTitle: "실적보고.xlsx"}}
	mux := newDocumentMux(service)

	body, contentType := multipartUpload(t, "실적보고.xlsx", "raw bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "실적보고.xlsx", service.uploadedTitle)
	assert.Equal(t, "매출 실적 요약", service.uploadedText)
}

func TestDocumentUpload_NonMultipartIs400(t *testing.T) {
	mux := newDocumentMux(&mockDocumentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"not": "multipart"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentDownload(t *testing.T) {
	service := &mockDocumentService{
		doc:  &models.Document{DocID: 7, DocTitle: "규정.pdf"},
		body: "blob contents",
	}
	mux := newDocumentMux(service)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/7", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "blob contents", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "규정.pdf")
}

func TestDocumentHandler_BadIDIs400(t *testing.T) {
	mux := newDocumentMux(&mockDocumentService{})

	for _, path := range []string{"/api/documents/abc", "/api/documents/-3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestDocumentHandler_MissingDocIs404(t *testing.T) {
	mux := newDocumentMux(&mockDocumentService{err: apperrors.ErrNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/99", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentDelete(t *testing.T) {
	service := &mockDocumentService{}
	mux := newDocumentMux(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/12", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(12), service.deletedID)
}

func TestDocumentSearch_RequiresQuery(t *testing.T) {
	mux := newDocumentMux(&mockDocumentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/search", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentSearch(t *testing.T) {
	service := &mockDocumentService{hits: []search.Hit{{DocID: 7, Title: "실적보고.xlsx", Chunk: "3월 매출", Score: 1.2}}}
	mux := newDocumentMux(service)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/search?q=매출&limit=5", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "실적보고.xlsx")
}

func TestDocumentLinkEntity(t *testing.T) {
	service := &mockDocumentService{relation: &models.DocumentRelation{RelationID: 1, DocID: 7}}
	mux := newDocumentMux(service)

	body := `{"entity_type": "employee", "entity_id": 42, "confidence": 90}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents/7/relations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "employee", service.linkedType)
	assert.Equal(t, int64(42), service.linkedID)
}

func TestDocumentLinkEntity_RejectsIncompleteBody(t *testing.T) {
	mux := newDocumentMux(&mockDocumentService{})

	body := `{"entity_type": "employee"}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents/7/relations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
