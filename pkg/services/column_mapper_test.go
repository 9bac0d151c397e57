package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/llm"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// ============================================================================
// Heuristic classifier
// ============================================================================

func TestHeuristicClassifier_EmployeeSheet(t *testing.T) {
	classifier := NewHeuristicClassifier(zap.NewNop())

	table := models.NewTable([]string{"성명", "사번", "부서", "직급"}, []models.Row{
		{"성명": "김철수", "사번": "EMP-001", "부서": "영업1팀", "직급": "과장"},
	})

	result, err := classifier.Classify(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, models.TableEmployees, result.TargetTable)
	// 성명 is required (30), the other three are optional (10 each).
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, map[string]string{
		"성명": "name",
		"사번": "employee_number",
		"부서": "team",
		"직급": "position",
	}, result.ColumnMapping)
}

func TestHeuristicClassifier_SalesSheet(t *testing.T) {
	classifier := NewHeuristicClassifier(zap.NewNop())

	table := models.NewTable([]string{"매출", "날짜", "제품명", "고객명"}, []models.Row{
		{"매출": "1,500,000", "날짜": "2024-03-02", "제품명": "타이레놀", "고객명": "중앙병원"},
	})

	result, err := classifier.Classify(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, models.TableSalesRecords, result.TargetTable)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, "sale_amount", result.ColumnMapping["매출"])
	assert.Equal(t, "sale_date", result.ColumnMapping["날짜"])
}

func TestHeuristicClassifier_SynonymAndSubstringMatching(t *testing.T) {
	classifier := NewHeuristicClassifier(zap.NewNop())

	// Neither header appears in the catalog directly; both resolve through
	// the synonym table (판매금액 -> 매출, 거래일 -> 날짜).
	table := models.NewTable([]string{"판매금액", "거래일"}, []models.Row{
		{"판매금액": "99000", "거래일": "2024-01-15"},
	})

	result, err := classifier.Classify(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, models.TableSalesRecords, result.TargetTable)
	assert.Equal(t, "sale_amount", result.ColumnMapping["판매금액"])
	assert.Equal(t, "sale_date", result.ColumnMapping["거래일"])
}

func TestHeuristicClassifier_NumericDensityBonus(t *testing.T) {
	classifier := NewHeuristicClassifier(zap.NewNop())

	// Two of three columns numeric in the first row: density 0.66 earns the
	// +5 bonus on top of 30+30 for the required sales fields.
	table := models.NewTable([]string{"매출", "날짜", "수량"}, []models.Row{
		{"매출": "50000", "날짜": "2024-05-01", "수량": "3"},
	})

	result, err := classifier.Classify(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, models.TableSalesRecords, result.TargetTable)
	assert.InDelta(t, 0.65, result.Confidence, 1e-9)
}

func TestHeuristicClassifier_NoMatchIsUnknown(t *testing.T) {
	classifier := NewHeuristicClassifier(zap.NewNop())

	table := models.NewTable([]string{"alpha", "beta"}, []models.Row{
		{"alpha": "1", "beta": "2"},
	})

	result, err := classifier.Classify(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, models.TableUnknown, result.TargetTable)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.ColumnMapping)
}

// ============================================================================
// Oracle classifier
// ============================================================================

func oracleTestTable() models.Table {
	return models.NewTable([]string{"직원", "사원번호"}, []models.Row{
		{"직원": "이영희", "사원번호": "EMP-002"},
	})
}

func TestOracleClassifier_ParsesVerdict(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "```json\n" +
			`{"target_table": "employees", "confidence": 0.92, "reasoning": "HR headers",` +
			` "column_mapping": {"직원": "name", "사원번호": "employee_number"}}` +
			"\n```", nil
	}

	classifier := NewOracleClassifier(mock, zap.NewNop())
	result, err := classifier.Classify(context.Background(), oracleTestTable())
	require.NoError(t, err)

	assert.Equal(t, models.TableEmployees, result.TargetTable)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, "employee_number", result.ColumnMapping["사원번호"])
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestOracleClassifier_DiscardsHallucinatedColumns(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return `{"target_table": "employees", "confidence": 0.8, "reasoning": "",` +
			` "column_mapping": {"직원": "name", "invented_column": "team"}}`, nil
	}

	classifier := NewOracleClassifier(mock, zap.NewNop())
	result, err := classifier.Classify(context.Background(), oracleTestTable())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"직원": "name"}, result.ColumnMapping)
}

func TestOracleClassifier_UnknownTargetTable(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return `{"target_table": "invoices", "confidence": 0.9, "reasoning": "", "column_mapping": {}}`, nil
	}

	classifier := NewOracleClassifier(mock, zap.NewNop())
	result, err := classifier.Classify(context.Background(), oracleTestTable())
	require.NoError(t, err)

	assert.Equal(t, models.TableUnknown, result.TargetTable)
}

func TestOracleClassifier_CallFailureIsUnavailable(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "", errors.New("connection refused")
	}

	classifier := NewOracleClassifier(mock, zap.NewNop())
	_, err := classifier.Classify(context.Background(), oracleTestTable())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
}

func TestOracleClassifier_GarbageReplyIsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose instead of JSON", "I think this is employee data."},
		{"missing target table", `{"confidence": 0.9, "column_mapping": {"직원": "name"}}`},
		{"missing column mapping", `{"target_table": "employees", "confidence": 0.9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockLLMClient()
			mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
				return tt.reply, nil
			}

			classifier := NewOracleClassifier(mock, zap.NewNop())
			_, err := classifier.Classify(context.Background(), oracleTestTable())

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrOracleMalformedResponse)
		})
	}
}
