package models

import "time"

// Document categories and types assigned by the document analyzer.
const (
	DocCategoryTable = "table"
	DocCategoryText  = "text"

	DocTypePerformanceData = "performance_data"
	DocTypeCustomerInfo    = "customer_info"
	DocTypeHRData          = "hr_data"
	DocTypeRegulation      = "regulation"
	DocTypeReport          = "report"
)

// Document is uploaded file metadata. The blob itself lives in the object
// store under FilePath; searchable chunks live in the search index.
type Document struct {
	DocID      int64     `json:"doc_id"`
	DocTitle   string    `json:"doc_title"`
	UploaderID int64     `json:"uploader_id"`
	FilePath   string    `json:"file_path"`
	DocType    *string   `json:"doc_type,omitempty"`
	Version    *string   `json:"version,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentRelation is a typed link from a document to another entity
// (employee, customer, product or another document), carrying the
// analyzer's confidence in the link.
type DocumentRelation struct {
	RelationID        int64     `json:"relation_id"`
	DocID             int64     `json:"doc_id"`
	RelatedEntityType string    `json:"related_entity_type"`
	RelatedEntityID   int64     `json:"related_entity_id"`
	ConfidenceScore   int       `json:"confidence_score"`
	CreatedAt         time.Time `json:"created_at"`
}
