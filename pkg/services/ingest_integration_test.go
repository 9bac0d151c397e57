package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/database"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/repositories"
	"github.com/pharmaflow/pharmaflow-engine/pkg/testhelpers"
)

type integrationStack struct {
	db        *database.DB
	ingest    IngestService
	employees repositories.EmployeeRepository
	customers repositories.CustomerRepository
	products  repositories.ProductRepository
	sales     repositories.SalesRepository
}

func newIntegrationStack(t *testing.T) *integrationStack {
	t.Helper()

	db := testhelpers.GetTestDB(t).DB
	logger := zap.NewNop()

	employees := repositories.NewEmployeeRepository()
	customers := repositories.NewCustomerRepository()
	products := repositories.NewProductRepository()
	sales := repositories.NewSalesRepository()

	resolver := NewEntityResolver(employees, customers, products, logger)
	engine := NewUpsertEngine(db, resolver, employees, customers, products, sales, logger)

	ingest := NewIngestService(
		nil, // no oracle: heuristic only
		NewHeuristicClassifier(logger),
		NewClassificationCache(nil, 0, logger),
		NewCompositeSplitter(logger),
		NewMonthlyPivotExpander(logger),
		engine,
		logger,
	)

	return &integrationStack{
		db:        db,
		ingest:    ingest,
		employees: employees,
		customers: customers,
		products:  products,
		sales:     sales,
	}
}

// poolCtx returns a context querying through the pool, for verification
// reads outside the pipeline's transactions.
func (s *integrationStack) poolCtx() context.Context {
	return database.SetQuerier(context.Background(), s.db.Pool)
}

func TestIngestPipeline_EmployeeSheet(t *testing.T) {
	stack := newIntegrationStack(t)

	table := models.NewTable([]string{"성명", "사번", "부서", "직급"}, []models.Row{
		{"성명": "김철수", "사번": "IT-PIPE-001", "부서": "영업1팀", "직급": "과장"},
		{"성명": "이영희", "사번": "IT-PIPE-002", "부서": "영업2팀", "직급": "대리"},
	})

	report, err := stack.ingest.IngestTable(context.Background(), table)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, models.BatchSingleTarget, report.State)
	assert.Equal(t, 2, report.TotalProcessed)

	got, err := stack.employees.GetByEmployeeNumber(stack.poolCtx(), "IT-PIPE-001")
	require.NoError(t, err)
	assert.Equal(t, "김철수", got.Name)
	require.NotNil(t, got.Team)
	assert.Equal(t, "영업1팀", *got.Team)
}

func TestIngestPipeline_ReingestUpdatesInsteadOfDuplicating(t *testing.T) {
	stack := newIntegrationStack(t)

	first := models.NewTable([]string{"성명", "사번", "부서"}, []models.Row{
		{"성명": "박민수", "사번": "IT-PIPE-010", "부서": "영업1팀"},
	})
	_, err := stack.ingest.IngestTable(context.Background(), first)
	require.NoError(t, err)

	second := models.NewTable([]string{"성명", "사번", "부서"}, []models.Row{
		{"성명": "박민수", "사번": "IT-PIPE-010", "부서": "영업3팀"},
	})
	report, err := stack.ingest.IngestTable(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalProcessed)

	got, err := stack.employees.GetByEmployeeNumber(stack.poolCtx(), "IT-PIPE-010")
	require.NoError(t, err)
	require.NotNil(t, got.Team)
	assert.Equal(t, "영업3팀", *got.Team)
}

func TestIngestPipeline_SalesSheetCreatesEntitiesAndLinks(t *testing.T) {
	stack := newIntegrationStack(t)

	table := models.NewTable([]string{"매출", "날짜", "제품명", "고객명", "사번", "직원명"}, []models.Row{
		{"매출": "₩1,500,000", "날짜": "2024-03-02", "제품명": "낙센정", "고객명": "한빛의원(마포구 공덕동)", "사번": "IT-PIPE-020", "직원명": "최지우"},
		{"매출": "없음", "날짜": "2024-03-02", "제품명": "낙센정", "고객명": "한빛의원(마포구 공덕동)", "사번": "IT-PIPE-020", "직원명": "최지우"},
	})

	report, err := stack.ingest.IngestTable(context.Background(), table)
	require.NoError(t, err)

	result := report.Results[models.TableSalesRecords]
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount, "unparseable amount skips the row, not the batch")

	ctx := stack.poolCtx()

	employee, err := stack.employees.GetByEmployeeNumber(ctx, "IT-PIPE-020")
	require.NoError(t, err)
	assert.Equal(t, "최지우", employee.Name)

	customer, err := stack.customers.GetByNameAndAddress(ctx, "한빛의원", strPtr("마포구 공덕동"))
	require.NoError(t, err)
	assert.Equal(t, "한빛의원", customer.CustomerName)

	_, err = stack.products.GetByName(ctx, "낙센정")
	require.NoError(t, err)

	count, err := stack.sales.CountSalesByEmployee(ctx, employee.EmployeeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func strPtr(s string) *string { return &s }
