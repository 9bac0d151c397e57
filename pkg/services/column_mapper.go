package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/jsonutil"
	"github.com/pharmaflow/pharmaflow-engine/pkg/llm"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/prompts"
	"github.com/pharmaflow/pharmaflow-engine/pkg/retry"
)

// Acceptance thresholds per classification strategy. The orchestrator owns
// comparing a verdict's confidence against these; classifiers just report.
const (
	HeuristicConfidenceThreshold = 0.3
	OracleConfidenceThreshold    = 0.5
)

// Heuristic scoring weights.
const (
	requiredFieldScore  = 30
	optionalFieldScore  = 10
	numericDensityScore = 5
	// numericDensityRatio is the share of numeric-looking cells in the first
	// sample row needed to earn the density bonus.
	numericDensityRatio = 0.3
)

// maxOracleSampleRows caps how many rows travel to the oracle.
const maxOracleSampleRows = 3

// TableClassifier decides which destination table an uploaded sheet belongs
// to and how its columns map onto destination columns.
type TableClassifier interface {
	Classify(ctx context.Context, table models.Table) (*models.TableClassification, error)
}

// ============================================================================
// Heuristic classifier
// ============================================================================

// HeuristicClassifier scores each catalog entity by keyword matching against
// the uploaded column headers. It never calls out; it is the deterministic
// strategy and the fallback when the oracle is unreachable.
type heuristicClassifier struct {
	catalog []EntitySchema
	logger  *zap.Logger
}

// NewHeuristicClassifier creates the keyword-scoring classifier.
func NewHeuristicClassifier(logger *zap.Logger) TableClassifier {
	return &heuristicClassifier{
		catalog: Catalog(),
		logger:  logger.Named("heuristic-classifier"),
	}
}

var _ TableClassifier = (*heuristicClassifier)(nil)

func (c *heuristicClassifier) Classify(_ context.Context, table models.Table) (*models.TableClassification, error) {
	best := &models.TableClassification{
		TargetTable:   models.TableUnknown,
		ColumnMapping: map[string]string{},
	}
	bestScore := 0

	densityBonus := 0
	if numericDensity(table) > numericDensityRatio {
		densityBonus = numericDensityScore
	}

	for i := range c.catalog {
		schema := &c.catalog[i]
		score, mapping := c.scoreSchema(schema, table.Columns)
		if score == 0 {
			continue
		}
		score += densityBonus

		if score > bestScore {
			bestScore = score
			confidence := float64(score) / 100.0
			if confidence > 1.0 {
				confidence = 1.0
			}
			best = &models.TableClassification{
				TargetTable:   schema.Kind,
				Confidence:    confidence,
				Reasoning:     fmt.Sprintf("keyword score %d for %s", score, schema.Kind),
				ColumnMapping: mapping,
			}
		}
	}

	c.logger.Debug("heuristic classification",
		zap.String("target", string(best.TargetTable)),
		zap.Float64("confidence", best.Confidence),
		zap.Int("columns", len(table.Columns)))

	return best, nil
}

// scoreSchema scores one catalog entity: each source column matching a
// required field earns 30, an optional field 10. A column maps to the first
// field it matches.
func (c *heuristicClassifier) scoreSchema(schema *EntitySchema, columns []string) (int, map[string]string) {
	score := 0
	mapping := make(map[string]string)

	for _, col := range columns {
		for i := range schema.Fields {
			field := &schema.Fields[i]
			if !columnMatchesField(col, field) {
				continue
			}
			if field.Required {
				score += requiredFieldScore
			} else {
				score += optionalFieldScore
			}
			mapping[col] = field.Target
			break
		}
	}

	return score, mapping
}

// columnMatchesField applies the fixed match order: exact header match,
// substring containment in either direction, then synonym-table lookup with
// substring containment on each synonym.
func columnMatchesField(col string, field *FieldSpec) bool {
	col = strings.TrimSpace(col)

	for _, header := range field.Headers {
		if col == header {
			return true
		}
	}
	for _, header := range field.Headers {
		if strings.Contains(col, header) || strings.Contains(header, col) {
			return true
		}
	}
	for _, header := range field.Headers {
		for _, synonym := range ColumnSynonyms[header] {
			if strings.Contains(col, synonym) || strings.Contains(synonym, col) {
				return true
			}
		}
	}
	return false
}

// numericDensity is the share of numeric-looking cells in the first row.
func numericDensity(table models.Table) float64 {
	if len(table.Rows) == 0 || len(table.Columns) == 0 {
		return 0
	}

	row := table.Rows[0]
	numeric := 0
	for _, col := range table.Columns {
		if _, ok := parseNumeric(row.Cell(col)); ok {
			numeric++
		}
	}
	return float64(numeric) / float64(len(table.Columns))
}

// ============================================================================
// Oracle classifier
// ============================================================================

// oracleClassifier delegates the judgment to an LLM. It validates the reply
// strictly and never falls back by itself; fallback policy belongs to the
// orchestrator.
type oracleClassifier struct {
	client   llm.LLMClient
	catalog  []EntitySchema
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewOracleClassifier creates the LLM-backed classifier.
func NewOracleClassifier(client llm.LLMClient, logger *zap.Logger) TableClassifier {
	return &oracleClassifier{
		client:   client,
		catalog:  Catalog(),
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("oracle-classifier"),
	}
}

var _ TableClassifier = (*oracleClassifier)(nil)

// oracleVerdict is the JSON reply contract. ColumnMapping values are raw so
// numeric or boolean slips from the model still coerce to strings.
type oracleVerdict struct {
	TargetTable   string                     `json:"target_table"`
	Confidence    float64                    `json:"confidence"`
	Reasoning     string                     `json:"reasoning"`
	ColumnMapping map[string]json.RawMessage `json:"column_mapping"`
}

func (c *oracleClassifier) Classify(ctx context.Context, table models.Table) (*models.TableClassification, error) {
	prompt := prompts.BuildTableClassificationPrompt(
		table.Columns,
		sampleRows(table, maxOracleSampleRows),
		c.promptTargets(),
	)

	// Transient failures (rate limits, connection resets) retry with
	// backoff; hard failures surface immediately.
	var response string
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		var callErr error
		response, callErr = c.client.GenerateResponse(ctx, prompt, prompts.TableClassificationSystemMessage, 0.1)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w: %w", apperrors.ErrOracleUnavailable, err)
	}

	verdict, err := llm.ParseJSONResponse[oracleVerdict](response)
	if err != nil {
		return nil, fmt.Errorf("unparseable classification reply: %w: %w", apperrors.ErrOracleMalformedResponse, err)
	}
	if verdict.TargetTable == "" || verdict.ColumnMapping == nil {
		return nil, fmt.Errorf("classification reply missing target_table or column_mapping: %w", apperrors.ErrOracleMalformedResponse)
	}

	result := &models.TableClassification{
		TargetTable:   c.resolveKind(verdict.TargetTable),
		Confidence:    verdict.Confidence,
		Reasoning:     verdict.Reasoning,
		ColumnMapping: c.filterMapping(verdict.ColumnMapping, table.Columns),
	}

	c.logger.Info("oracle classification",
		zap.String("target", string(result.TargetTable)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("mapped_columns", len(result.ColumnMapping)))

	return result, nil
}

// filterMapping discards mapping entries whose source column does not exist
// in the uploaded sheet. Models invent source columns often enough that this
// is mandatory hygiene.
func (c *oracleClassifier) filterMapping(raw map[string]json.RawMessage, columns []string) map[string]string {
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col] = struct{}{}
	}

	mapping := make(map[string]string)
	for source, target := range raw {
		if _, ok := present[source]; !ok {
			c.logger.Warn("discarding hallucinated source column", zap.String("column", source))
			continue
		}
		if targetCol := jsonutil.FlexibleStringValue(target); targetCol != "" {
			mapping[source] = targetCol
		}
	}
	return mapping
}

func (c *oracleClassifier) resolveKind(name string) models.TableKind {
	kind := models.TableKind(strings.ToLower(strings.TrimSpace(name)))
	if SchemaFor(kind) != nil {
		return kind
	}
	return models.TableUnknown
}

func (c *oracleClassifier) promptTargets() []prompts.TargetTable {
	targets := make([]prompts.TargetTable, 0, len(c.catalog))
	for i := range c.catalog {
		schema := &c.catalog[i]
		targets = append(targets, prompts.TargetTable{
			Name:        string(schema.Kind),
			Description: schema.Description,
			Columns:     schema.TargetColumns(),
		})
	}
	return targets
}

func sampleRows(table models.Table, limit int) []prompts.SampleRow {
	if limit > len(table.Rows) {
		limit = len(table.Rows)
	}

	samples := make([]prompts.SampleRow, 0, limit)
	for _, row := range table.Rows[:limit] {
		sample := make(prompts.SampleRow, len(table.Columns))
		for _, col := range table.Columns {
			if v := row.Cell(col); v != "" {
				sample[col] = v
			}
		}
		samples = append(samples, sample)
	}
	return samples
}
