package services

import (
	"strings"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// Composite detection thresholds: a sheet is composite when at least two
// entities each claim at least two of its columns.
const (
	compositeMinEntities = 2
	compositeMinColumns  = 2
)

// CompositeSplitter detects sheets that interleave columns of several
// entities (an HR export with customer columns glued on) and splits them
// into per-entity sub-tables.
type CompositeSplitter struct {
	catalog []EntitySchema
	logger  *zap.Logger
}

// NewCompositeSplitter creates a CompositeSplitter over the catalog.
func NewCompositeSplitter(logger *zap.Logger) *CompositeSplitter {
	return &CompositeSplitter{
		catalog: Catalog(),
		logger:  logger.Named("composite-splitter"),
	}
}

// matchedColumns buckets the sheet's columns by entity using the coarse
// classification keyword sets. A column may belong to several entities
// ("제품명" is both a sales and a product column).
func (s *CompositeSplitter) matchedColumns(columns []string) map[models.TableKind][]string {
	matched := make(map[models.TableKind][]string)

	for i := range s.catalog {
		schema := &s.catalog[i]
		for _, col := range columns {
			trimmed := strings.TrimSpace(col)
			for _, keyword := range schema.ClassificationKeywords {
				if strings.Contains(trimmed, keyword) || strings.Contains(keyword, trimmed) {
					matched[schema.Kind] = append(matched[schema.Kind], col)
					break
				}
			}
		}
	}

	return matched
}

// IsComposite reports whether the column set spans multiple entities.
func (s *CompositeSplitter) IsComposite(columns []string) bool {
	entities := 0
	for _, cols := range s.matchedColumns(columns) {
		if len(cols) >= compositeMinColumns {
			entities++
		}
	}
	return entities >= compositeMinEntities
}

// Split carves the sheet into per-entity sub-tables. Each sub-table keeps
// only that entity's columns; a row joins a sub-table only if it contributes
// at least one non-blank value there.
func (s *CompositeSplitter) Split(table models.Table) map[models.TableKind]models.Table {
	result := make(map[models.TableKind]models.Table)

	for kind, cols := range s.matchedColumns(table.Columns) {
		if len(cols) < compositeMinColumns {
			continue
		}

		var rows []models.Row
		for _, row := range table.Rows {
			subset := make(models.Row)
			for _, col := range cols {
				if v := row.Cell(col); v != "" {
					subset[col] = row[col]
				}
			}
			if len(subset) > 0 {
				rows = append(rows, subset)
			}
		}

		if len(rows) > 0 {
			result[kind] = models.Table{Columns: cols, Rows: rows}
		}
	}

	s.logger.Debug("composite split",
		zap.Int("entities", len(result)),
		zap.Int("source_rows", len(table.Rows)))

	return result
}
