package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

type engineFixture struct {
	engine    UpsertEngine
	tx        *fakeTxRunner
	employees *mockEmployeeRepo
	customers *mockCustomerRepo
	products  *mockProductRepo
	sales     *mockSalesRepo
}

func newEngineFixture() *engineFixture {
	employees := newMockEmployeeRepo()
	customers := newMockCustomerRepo()
	products := newMockProductRepo()
	sales := newMockSalesRepo()
	tx := &fakeTxRunner{}
	resolver := NewEntityResolver(employees, customers, products, zap.NewNop())

	return &engineFixture{
		engine:    NewUpsertEngine(tx, resolver, employees, customers, products, sales, zap.NewNop()),
		tx:        tx,
		employees: employees,
		customers: customers,
		products:  products,
		sales:     sales,
	}
}

func TestUpsertBatch_Employees_InsertAndUpdate(t *testing.T) {
	f := newEngineFixture()

	number := "EMP-001"
	f.employees.byNumber[number] = &models.Employee{
		EmployeeID:     1,
		EmployeeNumber: &number,
		Name:           "김철수",
	}

	table := models.NewTable([]string{"성명", "사번", "부서"}, []models.Row{
		{"성명": "김철수", "사번": "EMP-001", "부서": "영업1팀"}, // update
		{"성명": "이영희", "사번": "EMP-002", "부서": "영업2팀"}, // insert
		{"성명": "", "사번": "EMP-003"},                    // no name: skipped
	})
	mapping := map[string]string{"성명": "name", "사번": "employee_number", "부서": "team"}

	result, err := f.engine.UpsertBatch(context.Background(), models.TableEmployees, table, mapping)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 1, f.tx.calls, "one transaction per batch")

	require.Len(t, f.employees.updated, 1)
	require.NotNil(t, f.employees.updated[0].Team)
	assert.Equal(t, "영업1팀", *f.employees.updated[0].Team)
	assert.Contains(t, f.employees.byNumber, "EMP-002")
}

func TestUpsertBatch_Employees_MergeKeepsExistingFields(t *testing.T) {
	f := newEngineFixture()

	number := "EMP-001"
	team := "영업1팀"
	f.employees.byNumber[number] = &models.Employee{
		EmployeeID:     1,
		EmployeeNumber: &number,
		Name:           "김철수",
		Team:           &team,
	}

	// The incoming row has no team column; the stored team must survive.
	table := models.NewTable([]string{"성명", "사번", "직급"}, []models.Row{
		{"성명": "김철수", "사번": "EMP-001", "직급": "차장"},
	})
	mapping := map[string]string{"성명": "name", "사번": "employee_number", "직급": "position"}

	_, err := f.engine.UpsertBatch(context.Background(), models.TableEmployees, table, mapping)
	require.NoError(t, err)

	require.Len(t, f.employees.updated, 1)
	updated := f.employees.updated[0]
	require.NotNil(t, updated.Team)
	assert.Equal(t, "영업1팀", *updated.Team)
	require.NotNil(t, updated.Position)
	assert.Equal(t, "차장", *updated.Position)
}

func TestUpsertBatch_Customers_IntraBatchDedup(t *testing.T) {
	f := newEngineFixture()

	table := models.NewTable([]string{"고객명", "고객등급", "담당의사명"}, []models.Row{
		{"고객명": "중앙병원(강남구 역삼동)", "고객등급": "A"},
		{"고객명": "중앙병원(강남구 역삼동)", "담당의사명": "박의사"}, // same key: updates the first
		{"고객명": "성모약국", "고객등급": "C"},
	})
	mapping := map[string]string{
		"고객명": "customer_name", "고객등급": "customer_grade", "담당의사명": "doctor_name",
	}

	result, err := f.engine.UpsertBatch(context.Background(), models.TableCustomers, table, mapping)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, 0, result.SkippedCount)
	assert.Len(t, f.customers.byKey, 2, "duplicate rows share one entity")

	stored := f.customers.byKey[customerKey("중앙병원", strPtr("강남구 역삼동"))]
	require.NotNil(t, stored)
	require.NotNil(t, stored.CustomerGrade)
	assert.Equal(t, "A", *stored.CustomerGrade)
	require.NotNil(t, stored.DoctorName, "the duplicate row's fields merge into the entity")
	assert.Equal(t, "박의사", *stored.DoctorName)
}

func TestUpsertBatch_Employees_MissingNumberIsSkipped(t *testing.T) {
	f := newEngineFixture()

	table := models.NewTable([]string{"성명", "사번", "부서"}, []models.Row{
		{"성명": "김철수", "부서": "영업1팀"},
		{"성명": "이영희", "사번": "EMP-002", "부서": "영업2팀"},
	})
	mapping := map[string]string{"성명": "name", "사번": "employee_number", "부서": "team"}

	result, err := f.engine.UpsertBatch(context.Background(), models.TableEmployees, table, mapping)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.NotContains(t, f.employees.byNumber, "", "a name alone must never insert an employee")
	assert.Len(t, f.employees.byNumber, 1)
	assert.Contains(t, f.employees.byNumber, "EMP-002")
}

func TestUpsertBatch_SalesRecords_ResolvesAndLinks(t *testing.T) {
	f := newEngineFixture()

	table := models.NewTable([]string{"매출", "날짜", "제품명", "고객명", "사번", "직원명"}, []models.Row{
		{"매출": "₩1,500,000", "날짜": "2024-03-02", "제품명": "타이레놀", "고객명": "중앙병원", "사번": "EMP-001", "직원명": "김철수"},
		{"매출": "abc", "날짜": "2024-03-02", "제품명": "타이레놀", "고객명": "중앙병원", "사번": "EMP-001", "직원명": "김철수"}, // bad amount
		{"매출": "99000", "날짜": "2024-03-03", "제품명": "부루펜", "고객명": "성모약국", "사번": "", "직원명": "아무개"},        // no employee number
	})
	mapping := map[string]string{
		"매출": "sale_amount", "날짜": "sale_date", "제품명": "product_name",
		"고객명": "customer_name", "사번": "employee_number", "직원명": "employee_name",
	}

	result, err := f.engine.UpsertBatch(context.Background(), models.TableSalesRecords, table, mapping)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 2, result.SkippedCount)

	require.Len(t, f.sales.salesRecords, 1)
	record := f.sales.salesRecords[0]
	assert.InDelta(t, 1500000, record.SaleAmount, 1e-9)
	assert.Equal(t, "2024-03-02", record.SaleDate.Format("2006-01-02"))

	// Entities were created on the fly and the pair was linked.
	assert.Contains(t, f.employees.byNumber, "EMP-001")
	assert.Contains(t, f.products.byName, "타이레놀")
	assert.Len(t, f.sales.assignments, 1)
}

func TestUpsertBatch_Products_CreatesAndMerges(t *testing.T) {
	f := newEngineFixture()

	table := models.NewTable([]string{"제품명", "카테고리"}, []models.Row{
		{"제품명": "타이레놀", "카테고리": "해열진통제"},
		{"제품명": "", "카테고리": "무명"}, // no name: skipped
	})
	mapping := map[string]string{"제품명": "product_name", "카테고리": "category"}

	result, err := f.engine.UpsertBatch(context.Background(), models.TableProducts, table, mapping)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Contains(t, f.products.byName, "타이레놀")
}

func TestUpsertBatch_UnknownKind(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.UpsertBatch(context.Background(), models.TableUnknown, models.Table{}, nil)
	require.Error(t, err)
}

func TestUpsertPivotedSales(t *testing.T) {
	f := newEngineFixture()

	sales := []PivotedSale{
		{EmployeeName: "김철수", EmployeeNumber: "EMP-001", CustomerName: "중앙병원", ProductName: "타이레놀", SaleAmount: 150000},
		{EmployeeName: "김철수", EmployeeNumber: "EMP-001", CustomerName: "중앙병원", ProductName: "부루펜", SaleAmount: 80000},
		{EmployeeName: "아무개", EmployeeNumber: "", CustomerName: "성모약국", ProductName: "타이레놀", SaleAmount: 99000},
	}

	result, err := f.engine.UpsertPivotedSales(context.Background(), sales)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount, "sale without employee number is skipped")
	assert.Len(t, f.sales.salesRecords, 2)
	assert.Len(t, f.sales.assignments, 1, "same pair linked once")
}

func TestUpsertBatch_MessageUsesEntityNoun(t *testing.T) {
	f := newEngineFixture()

	table := models.NewTable([]string{"제품명"}, []models.Row{
		{"제품명": "타이레놀"},
	})
	mapping := map[string]string{"제품명": "product_name"}

	result, err := f.engine.UpsertBatch(context.Background(), models.TableProducts, table, mapping)
	require.NoError(t, err)
	assert.Equal(t, "1 product processed, 0 rows skipped", result.Message)
}
