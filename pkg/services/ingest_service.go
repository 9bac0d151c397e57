package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// IngestService is the front door for uploaded tabular data: it classifies a
// sheet, routes it down the single-target, composite, or monthly-pivot path,
// and returns a per-batch report.
type IngestService interface {
	IngestTable(ctx context.Context, table models.Table) (*models.BatchReport, error)
}

type ingestService struct {
	oracle    TableClassifier
	heuristic TableClassifier
	cache     ClassificationCache
	splitter  *CompositeSplitter
	pivot     *MonthlyPivotExpander
	upserter  UpsertEngine
	logger    *zap.Logger
}

// NewIngestService wires the ingestion pipeline. oracle may be nil when no
// LLM is configured; classification then runs on the heuristic alone.
func NewIngestService(
	oracle TableClassifier,
	heuristic TableClassifier,
	cache ClassificationCache,
	splitter *CompositeSplitter,
	pivot *MonthlyPivotExpander,
	upserter UpsertEngine,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		oracle:    oracle,
		heuristic: heuristic,
		cache:     cache,
		splitter:  splitter,
		pivot:     pivot,
		upserter:  upserter,
		logger:    logger.Named("ingest-service"),
	}
}

var _ IngestService = (*ingestService)(nil)

func (s *ingestService) IngestTable(ctx context.Context, table models.Table) (*models.BatchReport, error) {
	batchID := uuid.New()
	logger := s.logger.With(zap.String("batch_id", batchID.String()))

	logger.Info("batch received",
		zap.Int("columns", len(table.Columns)),
		zap.Int("rows", len(table.Rows)))

	if len(table.Rows) == 0 {
		return emptyBatchReport(batchID, "batch contains no rows"), nil
	}

	classification, err := s.classify(ctx, table, logger)
	if errors.Is(err, apperrors.ErrLowConfidenceMapping) {
		logger.Warn("mapping failed", zap.Error(err), zap.String("reasoning", classification.Reasoning))
		return mappingFailedReport(batchID, classification), nil
	}
	if err != nil {
		return nil, err
	}
	if classification.TargetTable == models.TableUnknown {
		logger.Warn("mapping failed", zap.String("reasoning", classification.Reasoning))
		return mappingFailedReport(batchID, classification), nil
	}

	// Route order matters: a wide monthly sheet also looks composite
	// (employee and product columns side by side), and its identity columns
	// can even out-score sales in the heuristic, so the pivot check runs
	// first and on the raw headers, whatever the classifier concluded.
	switch {
	case s.pivot.IsMonthlyPivot(table.Columns, classification.ColumnMapping):
		mapping := classification.ColumnMapping
		if classification.TargetTable != models.TableSalesRecords {
			logger.Info("pivot layout overrides classification",
				zap.String("classified_as", string(classification.TargetTable)))
			mapping = pivotIdentityMapping(table.Columns)
		}
		return s.ingestMonthlyPivot(ctx, batchID, table, mapping, logger)

	case s.splitter.IsComposite(table.Columns):
		return s.ingestComposite(ctx, batchID, table, logger)

	default:
		return s.ingestSingleTarget(ctx, batchID, table, classification, logger)
	}
}

// classify resolves the sheet's destination: cache, then oracle, then the
// heuristic. The heuristic steps in only when the oracle is unreachable or
// replies garbage; a well-formed low-confidence verdict is a real "no" and
// fails the mapping rather than being second-guessed.
func (s *ingestService) classify(ctx context.Context, table models.Table, logger *zap.Logger) (*models.TableClassification, error) {
	if cached := s.cache.Get(ctx, table.Columns); cached != nil {
		logger.Info("classification served from cache",
			zap.String("target", string(cached.TargetTable)))
		return cached, nil
	}

	if s.oracle != nil {
		classification, err := s.oracle.Classify(ctx, table)
		switch {
		case err == nil:
			if classification.Confidence < OracleConfidenceThreshold {
				classification.TargetTable = models.TableUnknown
				return classification, fmt.Errorf("oracle confidence %.2f below threshold: %w",
					classification.Confidence, apperrors.ErrLowConfidenceMapping)
			}
			s.cache.Put(ctx, table.Columns, classification)
			return classification, nil

		case errors.Is(err, apperrors.ErrOracleUnavailable),
			errors.Is(err, apperrors.ErrOracleMalformedResponse):
			logger.Warn("oracle classification failed, falling back to heuristic", zap.Error(err))

		default:
			return nil, fmt.Errorf("classification failed: %w", err)
		}
	}

	classification, err := s.heuristic.Classify(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("heuristic classification failed: %w", err)
	}
	if classification.Confidence < HeuristicConfidenceThreshold {
		classification.TargetTable = models.TableUnknown
		return classification, fmt.Errorf("heuristic confidence %.2f below threshold: %w",
			classification.Confidence, apperrors.ErrLowConfidenceMapping)
	}
	return classification, nil
}

// ============================================================================
// Routes
// ============================================================================

func (s *ingestService) ingestSingleTarget(ctx context.Context, batchID uuid.UUID, table models.Table, classification *models.TableClassification, logger *zap.Logger) (*models.BatchReport, error) {
	logger.Info("single target batch", zap.String("target", string(classification.TargetTable)))

	result, err := s.upserter.UpsertBatch(ctx, classification.TargetTable, table, classification.ColumnMapping)
	if err != nil {
		return nil, err
	}

	return finishReport(batchID, models.BatchSingleTarget, map[models.TableKind]*models.UpsertResult{
		classification.TargetTable: result,
	}), nil
}

func (s *ingestService) ingestComposite(ctx context.Context, batchID uuid.UUID, table models.Table, logger *zap.Logger) (*models.BatchReport, error) {
	subTables := s.splitter.Split(table)
	logger.Info("composite batch", zap.Int("sub_tables", len(subTables)))

	// Master data loads before facts so FK resolution inside a fact
	// sub-batch finds the rows this very upload carried.
	results := make(map[models.TableKind]*models.UpsertResult, len(subTables))
	for _, kind := range compositeLoadOrder(subTables) {
		subTable := subTables[kind]

		classification, err := s.classify(ctx, subTable, logger)
		if err != nil && !errors.Is(err, apperrors.ErrLowConfidenceMapping) {
			return nil, err
		}
		if classification.TargetTable == models.TableUnknown {
			results[kind] = &models.UpsertResult{
				SkippedCount: len(subTable.Rows),
				Message:      fmt.Sprintf("no confident mapping for %s columns", kind),
			}
			continue
		}

		result, err := s.upserter.UpsertBatch(ctx, classification.TargetTable, subTable, classification.ColumnMapping)
		if err != nil {
			return nil, err
		}
		results[classification.TargetTable] = result
	}

	return finishReport(batchID, models.BatchComposite, results), nil
}

func (s *ingestService) ingestMonthlyPivot(ctx context.Context, batchID uuid.UUID, table models.Table, mapping map[string]string, logger *zap.Logger) (*models.BatchReport, error) {
	sales, skippedRows := s.pivot.Expand(table, mapping)
	logger.Info("monthly pivot batch",
		zap.Int("expanded_sales", len(sales)),
		zap.Int("skipped_rows", skippedRows))

	result, err := s.upserter.UpsertPivotedSales(ctx, sales)
	if err != nil {
		return nil, err
	}
	result.SkippedCount += skippedRows

	return finishReport(batchID, models.BatchMonthlyPivot, map[models.TableKind]*models.UpsertResult{
		models.TableSalesRecords: result,
	}), nil
}

// ============================================================================
// Reports
// ============================================================================

// compositeLoadOrder sorts sub-tables master-data first, facts last.
var tableLoadRank = map[models.TableKind]int{
	models.TableEmployees:       0,
	models.TableCustomers:       1,
	models.TableProducts:        2,
	models.TableAssignmentMap:   3,
	models.TableSalesRecords:    4,
	models.TableInteractionLogs: 5,
}

func compositeLoadOrder(subTables map[models.TableKind]models.Table) []models.TableKind {
	kinds := make([]models.TableKind, 0, len(subTables))
	for kind := range subTables {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return tableLoadRank[kinds[i]] < tableLoadRank[kinds[j]]
	})
	return kinds
}

func emptyBatchReport(batchID uuid.UUID, message string) *models.BatchReport {
	return &models.BatchReport{
		BatchID: batchID,
		State:   models.BatchReported,
		Success: false,
		Results: map[models.TableKind]*models.UpsertResult{},
		Message: message,
	}
}

func mappingFailedReport(batchID uuid.UUID, classification *models.TableClassification) *models.BatchReport {
	message := "could not classify the uploaded table"
	if classification.Reasoning != "" {
		message = fmt.Sprintf("%s: %s", message, classification.Reasoning)
	}
	return &models.BatchReport{
		BatchID: batchID,
		State:   models.BatchMappingFailed,
		Success: false,
		Results: map[models.TableKind]*models.UpsertResult{},
		Message: message,
	}
}

// finishReport folds per-table results into the batch outcome. Success means
// at least one row landed somewhere.
func finishReport(batchID uuid.UUID, state models.BatchState, results map[models.TableKind]*models.UpsertResult) *models.BatchReport {
	targets := make([]models.TableKind, 0, len(results))
	for kind := range results {
		targets = append(targets, kind)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	total := 0
	skipped := 0
	var parts []string
	for _, kind := range targets {
		result := results[kind]
		total += result.ProcessedCount
		skipped += result.SkippedCount
		parts = append(parts, fmt.Sprintf("%s: %s", kind, result.Message))
	}

	rowNoun := "rows"
	if total == 1 {
		rowNoun = inflection.Singular(rowNoun)
	}
	summary := fmt.Sprintf("%d %s loaded across %d target tables (%d skipped)", total, rowNoun, len(targets), skipped)
	if len(parts) > 0 {
		summary = summary + ". " + strings.Join(parts, "; ")
	}

	return &models.BatchReport{
		BatchID:        batchID,
		State:          state,
		Success:        total > 0,
		TargetTables:   targets,
		Results:        results,
		TotalProcessed: total,
		Message:        summary,
	}
}
