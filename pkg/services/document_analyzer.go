package services

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/llm"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/prompts"
)

// DocumentVerdict is the analyzer's categorization of an uploaded file.
type DocumentVerdict struct {
	Category   string `json:"category"`
	DocType    string `json:"doc_type"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// tableExtensions are file types that carry row/column data.
var tableExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
	".tsv":  true,
}

// docTypeKeywords route a filename to a document type. Checked in order;
// first hit wins.
var docTypeKeywords = []struct {
	docType  string
	keywords []string
}{
	{models.DocTypePerformanceData, []string{"실적", "매출", "판매", "performance", "sales"}},
	{models.DocTypeCustomerInfo, []string{"고객", "거래처", "병원", "약국", "customer"}},
	{models.DocTypeHRData, []string{"인사", "급여", "직원", "평가", "hr", "salary"}},
	{models.DocTypeRegulation, []string{"규정", "법규", "지침", "약사법", "regulation", "compliance"}},
	{models.DocTypeReport, []string{"보고", "리포트", "report", "분석"}},
}

// minDocTypeConfidence is the oracle confidence below which the analyzer
// keeps the filename-based verdict.
const minDocTypeConfidence = 50

// DocumentAnalyzer categorizes uploaded files: spreadsheet or prose, and
// which document type. The filename heuristic always produces an answer;
// the oracle refines it when the filename alone is not conclusive.
type DocumentAnalyzer struct {
	client llm.LLMClient
	logger *zap.Logger
}

// NewDocumentAnalyzer creates a DocumentAnalyzer. client may be nil; the
// analyzer then runs on the filename heuristic alone.
func NewDocumentAnalyzer(client llm.LLMClient, logger *zap.Logger) *DocumentAnalyzer {
	return &DocumentAnalyzer{
		client: client,
		logger: logger.Named("document-analyzer"),
	}
}

// Analyze categorizes a document from its title and an optional text
// excerpt. It always returns a verdict; oracle failures degrade to the
// heuristic answer.
func (a *DocumentAnalyzer) Analyze(ctx context.Context, title, excerpt string) *DocumentVerdict {
	verdict := a.heuristicVerdict(title)
	if verdict.DocType != "" && verdict.Confidence >= minDocTypeConfidence {
		return verdict
	}
	if a.client == nil {
		return verdict
	}

	refined, err := a.oracleVerdict(ctx, title, excerpt)
	if err != nil {
		a.logger.Warn("document analysis oracle failed, keeping heuristic verdict",
			zap.String("title", title), zap.Error(err))
		return verdict
	}
	if refined.Confidence < minDocTypeConfidence {
		return verdict
	}
	return refined
}

func (a *DocumentAnalyzer) heuristicVerdict(title string) *DocumentVerdict {
	category := models.DocCategoryText
	if tableExtensions[strings.ToLower(filepath.Ext(title))] {
		category = models.DocCategoryTable
	}

	lower := strings.ToLower(title)
	for _, rule := range docTypeKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return &DocumentVerdict{
					Category:   category,
					DocType:    rule.docType,
					Confidence: 70,
					Reasoning:  "filename keyword match",
				}
			}
		}
	}

	return &DocumentVerdict{
		Category:   category,
		Confidence: 0,
		Reasoning:  "no filename keyword matched",
	}
}

func (a *DocumentAnalyzer) oracleVerdict(ctx context.Context, title, excerpt string) (*DocumentVerdict, error) {
	prompt := prompts.BuildDocumentAnalysisPrompt(title, excerpt)

	response, err := a.client.GenerateResponse(ctx, prompt, prompts.DocumentAnalysisSystemMessage, 0.1)
	if err != nil {
		return nil, err
	}

	verdict, err := llm.ParseJSONResponse[DocumentVerdict](response)
	if err != nil {
		return nil, err
	}

	if !validDocType(verdict.DocType) {
		verdict.DocType = ""
		verdict.Confidence = 0
	}
	return &verdict, nil
}

func validDocType(docType string) bool {
	switch docType {
	case models.DocTypePerformanceData, models.DocTypeCustomerInfo,
		models.DocTypeHRData, models.DocTypeRegulation, models.DocTypeReport:
		return true
	}
	return false
}
