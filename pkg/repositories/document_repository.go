package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// DocumentRepository provides data access for document metadata and the
// typed links the analyzer creates between documents and CRM entities.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, docID int64) (*models.Document, error)
	Delete(ctx context.Context, docID int64) error
	// ListOrphansOlderThan returns documents created before cutoff that have
	// no entity relations. The cleanup job deletes these.
	ListOrphansOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Document, error)
	CreateRelation(ctx context.Context, rel *models.DocumentRelation) error
	ListRelations(ctx context.Context, docID int64) ([]*models.DocumentRelation, error)
}

type documentRepository struct{}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository() DocumentRepository {
	return &documentRepository{}
}

var _ DocumentRepository = (*documentRepository)(nil)

const documentColumns = `doc_id, doc_title, uploader_id, file_path, doc_type, version, created_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.DocID, &d.DocTitle, &d.UploaderID, &d.FilePath,
		&d.DocType, &d.Version, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (doc_title, uploader_id, file_path, doc_type, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING doc_id, created_at`

	err = q.QueryRow(ctx, query,
		doc.DocTitle,
		doc.UploaderID,
		doc.FilePath,
		doc.DocType,
		doc.Version,
		time.Now(),
	).Scan(&doc.DocID, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, docID int64) (*models.Document, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM documents WHERE doc_id = $1`, documentColumns)

	doc, err := scanDocument(q.QueryRow(ctx, query, docID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %d: %w", docID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) Delete(ctx context.Context, docID int64) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", docID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *documentRepository) ListOrphansOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM documents d
		WHERE d.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM document_relations r WHERE r.doc_id = d.doc_id
		  )
		ORDER BY d.created_at`, documentColumns)

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphan documents: %w", err)
	}

	return docs, nil
}

func (r *documentRepository) CreateRelation(ctx context.Context, rel *models.DocumentRelation) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	// Re-analyzing a document refreshes the confidence of existing links.
	query := `
		INSERT INTO document_relations (doc_id, related_entity_type, related_entity_id, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (doc_id, related_entity_type, related_entity_id)
		DO UPDATE SET confidence_score = EXCLUDED.confidence_score
		RETURNING relation_id, created_at`

	err = q.QueryRow(ctx, query,
		rel.DocID,
		rel.RelatedEntityType,
		rel.RelatedEntityID,
		rel.ConfidenceScore,
		time.Now(),
	).Scan(&rel.RelationID, &rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document relation: %w", err)
	}

	return nil
}

func (r *documentRepository) ListRelations(ctx context.Context, docID int64) ([]*models.DocumentRelation, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT relation_id, doc_id, related_entity_type, related_entity_id, confidence_score, created_at
		FROM document_relations
		WHERE doc_id = $1
		ORDER BY relation_id`

	rows, err := q.Query(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document relations: %w", err)
	}
	defer rows.Close()

	var rels []*models.DocumentRelation
	for rows.Next() {
		var rel models.DocumentRelation
		err := rows.Scan(
			&rel.RelationID, &rel.DocID, &rel.RelatedEntityType,
			&rel.RelatedEntityID, &rel.ConfidenceScore, &rel.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document relation: %w", err)
		}
		rels = append(rels, &rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document relations: %w", err)
	}

	return rels, nil
}
