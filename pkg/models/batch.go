package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// TableKind names a core table a batch of rows can be routed to.
type TableKind string

const (
	TableEmployees         TableKind = "employees"
	TableCustomers         TableKind = "customers"
	TableProducts          TableKind = "products"
	TableSalesRecords      TableKind = "sales_records"
	TableInteractionLogs   TableKind = "interaction_logs"
	TableAssignmentMap     TableKind = "assignment_map"
	TableDocuments         TableKind = "documents"
	TableDocumentRelations TableKind = "document_relations"
	TableUnknown           TableKind = "unknown"
)

// Row is one uploaded spreadsheet row keyed by source column header.
// Values keep whatever type the upload decoder produced (string, float64,
// nil); Cell normalizes them for matching.
type Row map[string]any

// Cell returns the row's value for col as a trimmed string. Nil cells and
// the literal "nan" (pandas' NaN survives many export paths as text)
// normalize to the empty string.
func (r Row) Cell(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		// Spreadsheet decoders hand integers back as floats.
		if t == float64(int64(t)) {
			s = fmt.Sprintf("%d", int64(t))
		} else {
			s = fmt.Sprintf("%v", t)
		}
	default:
		s = fmt.Sprintf("%v", t)
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

// Table is an uploaded sheet: an ordered column header list plus rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable builds a Table from bare rows, deriving the column list from
// the union of row keys when the upload did not carry headers. The derived
// order is sorted so classification is deterministic.
func NewTable(columns []string, rows []Row) Table {
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, row := range rows {
			for col := range row {
				if _, ok := seen[col]; !ok {
					seen[col] = struct{}{}
					columns = append(columns, col)
				}
			}
		}
		sort.Strings(columns)
	}
	return Table{Columns: columns, Rows: rows}
}

// TableClassification is a classifier's verdict for one sheet.
type TableClassification struct {
	TargetTable   TableKind         `json:"target_table"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning"`
	ColumnMapping map[string]string `json:"column_mapping"`
}

// BatchState tracks a batch through the ingestion pipeline.
type BatchState string

const (
	BatchReceived      BatchState = "received"
	BatchMappingFailed BatchState = "mapping_failed"
	BatchSingleTarget  BatchState = "single_target"
	BatchComposite     BatchState = "composite"
	BatchMonthlyPivot  BatchState = "monthly_pivot"
	BatchInserted      BatchState = "inserted"
	BatchReported      BatchState = "reported"
)

// UpsertResult summarizes one table's share of a batch.
type UpsertResult struct {
	ProcessedCount int    `json:"processed_count"`
	SkippedCount   int    `json:"skipped_count"`
	Message        string `json:"message"`
}

// BatchReport is the per-batch outcome returned to the uploader. Success
// means at least one row landed; skipped rows are reported, not fatal.
type BatchReport struct {
	BatchID        uuid.UUID                   `json:"batch_id"`
	State          BatchState                  `json:"state"`
	Success        bool                        `json:"success"`
	TargetTables   []TableKind                 `json:"target_tables"`
	Results        map[TableKind]*UpsertResult `json:"results"`
	TotalProcessed int                         `json:"total_processed"`
	Message        string                      `json:"message"`
}
