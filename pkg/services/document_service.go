package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/objectstore"
	"github.com/pharmaflow/pharmaflow-engine/pkg/repositories"
	"github.com/pharmaflow/pharmaflow-engine/pkg/search"
)

// searchChunkRunes sizes the text chunks written to the search index.
const searchChunkRunes = 1000

// analysisExcerptRunes caps how much document text travels to the analyzer.
const analysisExcerptRunes = 2000

// DocumentService owns the three homes of an uploaded document: the blob in
// object storage, the metadata row in Postgres, and the text chunks in the
// search index. Upload and Delete keep all three in step.
type DocumentService interface {
	Upload(ctx context.Context, title string, uploaderID int64, content io.Reader, contentType string, text string) (*models.Document, error)
	Get(ctx context.Context, docID int64) (*models.Document, io.ReadCloser, error)
	Delete(ctx context.Context, docID int64) error
	Search(ctx context.Context, query string, limit int) ([]search.Hit, error)
	LinkEntity(ctx context.Context, docID int64, entityType string, entityID int64, confidence int) (*models.DocumentRelation, error)
	ListRelations(ctx context.Context, docID int64) ([]*models.DocumentRelation, error)
}

type documentService struct {
	tx        TxRunner
	documents repositories.DocumentRepository
	store     objectstore.Store
	indexer   search.Indexer
	analyzer  *DocumentAnalyzer
	logger    *zap.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(
	tx TxRunner,
	documents repositories.DocumentRepository,
	store objectstore.Store,
	indexer search.Indexer,
	analyzer *DocumentAnalyzer,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		tx:        tx,
		documents: documents,
		store:     store,
		indexer:   indexer,
		analyzer:  analyzer,
		logger:    logger.Named("document-service"),
	}
}

var _ DocumentService = (*documentService)(nil)

// Upload stores the blob first, then the metadata row; the blob is removed
// again if the row cannot be written, so storage never holds blobs Postgres
// does not know about. text is the extracted document text; blank for
// binary formats the caller could not extract.
func (s *documentService) Upload(ctx context.Context, title string, uploaderID int64, content io.Reader, contentType string, text string) (*models.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("document title must not be empty")
	}

	key := fmt.Sprintf("documents/%s/%s", uuid.New().String(), title)
	if err := s.store.Put(ctx, key, content, contentType); err != nil {
		return nil, fmt.Errorf("failed to store document blob: %w", err)
	}

	verdict := s.analyzer.Analyze(ctx, title, truncateRunes(text, analysisExcerptRunes))

	doc := &models.Document{
		DocTitle:   title,
		UploaderID: uploaderID,
		FilePath:   key,
	}
	if verdict.DocType != "" {
		doc.DocType = &verdict.DocType
	}

	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.documents.Create(txCtx, doc)
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to remove orphaned blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	// Index failures are not fatal: the document exists and is served, it
	// is just not findable by content until re-indexed.
	if text != "" {
		if err := s.indexer.IndexChunks(ctx, doc.DocID, title, chunkText(text, searchChunkRunes)); err != nil {
			s.logger.Warn("failed to index document text", zap.Int64("doc_id", doc.DocID), zap.Error(err))
		}
	}

	s.logger.Info("document uploaded",
		zap.Int64("doc_id", doc.DocID),
		zap.String("title", title),
		zap.String("doc_type", verdict.DocType))

	return doc, nil
}

func (s *documentService) Get(ctx context.Context, docID int64) (*models.Document, io.ReadCloser, error) {
	var doc *models.Document
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		var txErr error
		doc, txErr = s.documents.GetByID(txCtx, docID)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}

	body, err := s.store.Get(ctx, doc.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch document blob: %w", err)
	}
	return doc, body, nil
}

// Delete removes the document from all three homes. The row goes last: if
// blob or index deletion fails the metadata still points at what remains,
// and the cleanup job can finish the work later.
func (s *documentService) Delete(ctx context.Context, docID int64) error {
	var doc *models.Document
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		var txErr error
		doc, txErr = s.documents.GetByID(txCtx, docID)
		return txErr
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.FilePath); err != nil {
		return fmt.Errorf("failed to delete document blob: %w", err)
	}
	if err := s.indexer.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document from search index: %w", err)
	}

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.documents.Delete(txCtx, docID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("document deleted", zap.Int64("doc_id", docID))
	return nil
}

func (s *documentService) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	return s.indexer.Search(ctx, query, limit)
}

func (s *documentService) LinkEntity(ctx context.Context, docID int64, entityType string, entityID int64, confidence int) (*models.DocumentRelation, error) {
	rel := &models.DocumentRelation{
		DocID:             docID,
		RelatedEntityType: entityType,
		RelatedEntityID:   entityID,
		ConfidenceScore:   confidence,
	}

	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.documents.CreateRelation(txCtx, rel)
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (s *documentService) ListRelations(ctx context.Context, docID int64) ([]*models.DocumentRelation, error) {
	var rels []*models.DocumentRelation
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		var txErr error
		rels, txErr = s.documents.ListRelations(txCtx, docID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// chunkText splits text into rune-bounded chunks, preferring paragraph
// breaks so a chunk stays readable in search results.
func chunkText(text string, size int) []string {
	var chunks []string
	var current strings.Builder

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(paragraph) > size {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		// A single oversized paragraph splits mid-text.
		for utf8.RuneCountInString(paragraph) > size {
			runes := []rune(paragraph)
			chunks = append(chunks, string(runes[:size]))
			paragraph = string(runes[size:])
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
