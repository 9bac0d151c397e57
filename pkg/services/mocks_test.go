package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/database"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// ============================================================================
// Fake transaction plumbing
//
// Unit tests run the resolver and upsert engine without Postgres. The fake
// querier hands out fake savepoints whose Commit/Rollback are no-ops, and
// the fake TxRunner installs it into context the way database.DB.InTx does.
// ============================================================================

type fakeTx struct {
	pgx.Tx // panics if a test reaches an unstubbed method
}

func (fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }
func (fakeTx) Commit(ctx context.Context) error          { return nil }
func (fakeTx) Rollback(ctx context.Context) error        { return nil }

type fakeQuerier struct {
	database.Querier
}

func (fakeQuerier) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

// testContext returns a context carrying a fake querier, as if inside a
// batch transaction.
func testContext() context.Context {
	return database.SetQuerier(context.Background(), fakeQuerier{})
}

type fakeTxRunner struct {
	calls int
}

func (r *fakeTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(database.SetQuerier(ctx, fakeQuerier{}))
}

// ============================================================================
// Mock repositories
// ============================================================================

type mockEmployeeRepo struct {
	byNumber  map[string]*models.Employee
	nextID    int64
	createErr error
	// conflictOnce makes the next Create fail with ErrConflict and then
	// materialize the row, simulating a concurrent writer.
	conflictOnce *models.Employee
	updated      []*models.Employee
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{byNumber: make(map[string]*models.Employee), nextID: 1}
}

func (m *mockEmployeeRepo) Create(ctx context.Context, employee *models.Employee) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.conflictOnce != nil {
		winner := m.conflictOnce
		m.conflictOnce = nil
		m.byNumber[*winner.EmployeeNumber] = winner
		return fmt.Errorf("employee exists: %w", apperrors.ErrConflict)
	}
	if employee.EmployeeNumber != nil {
		if _, exists := m.byNumber[*employee.EmployeeNumber]; exists {
			return fmt.Errorf("employee exists: %w", apperrors.ErrConflict)
		}
	}
	employee.EmployeeID = m.nextID
	m.nextID++
	if employee.EmployeeNumber != nil {
		m.byNumber[*employee.EmployeeNumber] = employee
	}
	return nil
}

func (m *mockEmployeeRepo) Update(ctx context.Context, employee *models.Employee) error {
	m.updated = append(m.updated, employee)
	return nil
}

func (m *mockEmployeeRepo) GetByID(ctx context.Context, employeeID int64) (*models.Employee, error) {
	for _, e := range m.byNumber {
		if e.EmployeeID == employeeID {
			return e, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockEmployeeRepo) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.Employee, error) {
	if e, ok := m.byNumber[employeeNumber]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("employee %q: %w", employeeNumber, apperrors.ErrNotFound)
}

type mockCustomerRepo struct {
	byKey  map[string]*models.Customer
	nextID int64
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{byKey: make(map[string]*models.Customer), nextID: 1}
}

func customerKey(name string, address *string) string {
	if address == nil {
		return name + "\x00<nil>"
	}
	return name + "\x00" + *address
}

func (m *mockCustomerRepo) Create(ctx context.Context, customer *models.Customer) error {
	key := customerKey(customer.CustomerName, customer.Address)
	if _, exists := m.byKey[key]; exists {
		return fmt.Errorf("customer exists: %w", apperrors.ErrConflict)
	}
	customer.CustomerID = m.nextID
	m.nextID++
	m.byKey[key] = customer
	return nil
}

func (m *mockCustomerRepo) Update(ctx context.Context, customer *models.Customer) error {
	return nil
}

func (m *mockCustomerRepo) GetByID(ctx context.Context, customerID int64) (*models.Customer, error) {
	for _, c := range m.byKey {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCustomerRepo) GetByNameAndAddress(ctx context.Context, name string, address *string) (*models.Customer, error) {
	if c, ok := m.byKey[customerKey(name, address)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("customer %q: %w", name, apperrors.ErrNotFound)
}

type mockProductRepo struct {
	byName map[string]*models.Product
	nextID int64
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{byName: make(map[string]*models.Product), nextID: 1}
}

func (m *mockProductRepo) Create(ctx context.Context, product *models.Product) error {
	if _, exists := m.byName[product.ProductName]; exists {
		return fmt.Errorf("product exists: %w", apperrors.ErrConflict)
	}
	product.ProductID = m.nextID
	m.nextID++
	m.byName[product.ProductName] = product
	return nil
}

func (m *mockProductRepo) Update(ctx context.Context, product *models.Product) error { return nil }

func (m *mockProductRepo) GetByID(ctx context.Context, productID int64) (*models.Product, error) {
	for _, p := range m.byName {
		if p.ProductID == productID {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProductRepo) GetByName(ctx context.Context, name string) (*models.Product, error) {
	if p, ok := m.byName[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("product %q: %w", name, apperrors.ErrNotFound)
}

type mockSalesRepo struct {
	salesRecords []*models.SalesRecord
	interactions []*models.InteractionLog
	assignments  map[string]int
	insertErr    error
}

func newMockSalesRepo() *mockSalesRepo {
	return &mockSalesRepo{assignments: make(map[string]int)}
}

func (m *mockSalesRepo) InsertSalesRecord(ctx context.Context, record *models.SalesRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.salesRecords = append(m.salesRecords, record)
	return nil
}

func (m *mockSalesRepo) InsertInteractionLog(ctx context.Context, log *models.InteractionLog) error {
	m.interactions = append(m.interactions, log)
	return nil
}

func (m *mockSalesRepo) UpsertAssignment(ctx context.Context, employeeID, customerID int64) error {
	m.assignments[fmt.Sprintf("%d-%d", employeeID, customerID)]++
	return nil
}

func (m *mockSalesRepo) CountSalesByEmployee(ctx context.Context, employeeID int64) (int64, error) {
	count := int64(0)
	for _, r := range m.salesRecords {
		if r.EmployeeID == employeeID {
			count++
		}
	}
	return count, nil
}

// ============================================================================
// Stub classifier and upsert engine
// ============================================================================

type stubClassifier struct {
	result *models.TableClassification
	err    error
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, table models.Table) (*models.TableClassification, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type upsertCall struct {
	kind    models.TableKind
	rows    int
	mapping map[string]string
}

type mockUpsertEngine struct {
	calls       []upsertCall
	pivotedRows int
	result      *models.UpsertResult
	err         error
}

func (m *mockUpsertEngine) UpsertBatch(ctx context.Context, kind models.TableKind, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	m.calls = append(m.calls, upsertCall{kind: kind, rows: len(table.Rows), mapping: mapping})
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &models.UpsertResult{ProcessedCount: len(table.Rows)}, nil
}

func (m *mockUpsertEngine) UpsertPivotedSales(ctx context.Context, sales []PivotedSale) (*models.UpsertResult, error) {
	m.pivotedRows += len(sales)
	if m.err != nil {
		return nil, m.err
	}
	return &models.UpsertResult{ProcessedCount: len(sales)}, nil
}
