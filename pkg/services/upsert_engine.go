package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/database"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/repositories"
)

// TxRunner abstracts database.DB.InTx so the engine is testable without a
// live pool.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UpsertEngine persists a classified batch into one destination table.
// Row-level failures are counted and skipped, never raised: a half-good
// sheet loads its good half.
type UpsertEngine interface {
	UpsertBatch(ctx context.Context, kind models.TableKind, table models.Table, mapping map[string]string) (*models.UpsertResult, error)
	// UpsertPivotedSales persists records produced by the monthly pivot
	// expander, linking assignment_map as a side effect.
	UpsertPivotedSales(ctx context.Context, sales []PivotedSale) (*models.UpsertResult, error)
}

type upsertEngine struct {
	tx        TxRunner
	resolver  EntityResolver
	employees repositories.EmployeeRepository
	customers repositories.CustomerRepository
	products  repositories.ProductRepository
	sales     repositories.SalesRepository
	logger    *zap.Logger
}

// NewUpsertEngine creates an UpsertEngine.
func NewUpsertEngine(
	tx TxRunner,
	resolver EntityResolver,
	employees repositories.EmployeeRepository,
	customers repositories.CustomerRepository,
	products repositories.ProductRepository,
	sales repositories.SalesRepository,
	logger *zap.Logger,
) UpsertEngine {
	return &upsertEngine{
		tx:        tx,
		resolver:  resolver,
		employees: employees,
		customers: customers,
		products:  products,
		sales:     sales,
		logger:    logger.Named("upsert-engine"),
	}
}

var _ UpsertEngine = (*upsertEngine)(nil)

func (e *upsertEngine) UpsertBatch(ctx context.Context, kind models.TableKind, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	var result *models.UpsertResult

	err := e.tx.InTx(ctx, func(txCtx context.Context) error {
		var txErr error
		switch kind {
		case models.TableEmployees:
			result, txErr = e.upsertEmployees(txCtx, table, mapping)
		case models.TableCustomers:
			result, txErr = e.upsertCustomers(txCtx, table, mapping)
		case models.TableProducts:
			result, txErr = e.upsertProducts(txCtx, table, mapping)
		case models.TableSalesRecords:
			result, txErr = e.insertSalesRecords(txCtx, table, mapping)
		case models.TableInteractionLogs:
			result, txErr = e.insertInteractionLogs(txCtx, table, mapping)
		case models.TableAssignmentMap:
			result, txErr = e.upsertAssignments(txCtx, table, mapping)
		default:
			txErr = fmt.Errorf("no upsert path for table %q", kind)
		}
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("upsert batch for %s failed: %w", kind, err)
	}

	e.logger.Info("batch upserted",
		zap.String("table", string(kind)),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("skipped", result.SkippedCount))

	return result, nil
}

// ============================================================================
// Master data upserts
// ============================================================================

func (e *upsertEngine) upsertEmployees(ctx context.Context, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	inv := invertMapping(mapping)
	processed, skipped := 0, 0

	for _, row := range table.Rows {
		err := e.inRowScope(ctx, func(rowCtx context.Context) error {
			name := row.Cell(inv["name"])
			if name == "" {
				return fmt.Errorf("employee row without name: %w", apperrors.ErrMissingNaturalKey)
			}

			incoming := &models.Employee{
				Name:             name,
				EmployeeNumber:   optionalString(row.Cell(inv["employee_number"])),
				Team:             optionalString(row.Cell(inv["team"])),
				Position:         optionalString(row.Cell(inv["position"])),
				BusinessUnit:     optionalString(row.Cell(inv["business_unit"])),
				Branch:           optionalString(row.Cell(inv["branch"])),
				ContactNumber:    optionalString(row.Cell(inv["contact_number"])),
				BaseSalary:       optionalInt64(row.Cell(inv["base_salary"])),
				IncentivePay:     optionalInt64(row.Cell(inv["incentive_pay"])),
				AvgMonthlyBudget: optionalInt64(row.Cell(inv["avg_monthly_budget"])),
				LatestEvaluation: optionalString(row.Cell(inv["latest_evaluation"])),
			}

			// The badge number is the only identity employees upsert on;
			// inserting by name alone would duplicate homonyms.
			if incoming.EmployeeNumber == nil {
				return fmt.Errorf("employee row without employee number: %w", apperrors.ErrMissingNaturalKey)
			}

			existing, err := e.employees.GetByEmployeeNumber(rowCtx, *incoming.EmployeeNumber)
			if errors.Is(err, apperrors.ErrNotFound) {
				return e.employees.Create(rowCtx, incoming)
			}
			if err != nil {
				return err
			}

			mergeEmployee(existing, incoming)
			return e.employees.Update(rowCtx, existing)
		})
		if err != nil {
			skipped++
			e.logger.Warn("employee row skipped", zap.Error(err))
			continue
		}
		processed++
	}

	return batchResult(models.TableEmployees, processed, skipped), nil
}

func (e *upsertEngine) upsertCustomers(ctx context.Context, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	inv := invertMapping(mapping)
	processed, skipped := 0, 0

	// The same sheet often repeats a customer across rows. Later rows
	// sharing the natural key merge into the entity resolved for the first
	// occurrence instead of hitting storage again.
	resolved := make(map[string]*models.Customer)

	for _, row := range table.Rows {
		var rowKey string
		var rowCustomer *models.Customer

		err := e.inRowScope(ctx, func(rowCtx context.Context) error {
			rawName := row.Cell(inv["customer_name"])
			cleanName, address := SplitCustomerName(rawName)
			if cleanName == "" {
				return fmt.Errorf("customer row without name: %w", apperrors.ErrMissingNaturalKey)
			}

			key := cleanName + "\x00" + address
			customer, ok := resolved[key]
			if !ok {
				var err error
				customer, err = e.resolver.ResolveCustomer(rowCtx, rawName)
				if err != nil {
					return err
				}
			}
			rowKey, rowCustomer = key, customer

			incoming := &models.Customer{
				DoctorName:    optionalString(row.Cell(inv["doctor_name"])),
				TotalPatients: optionalInt64(row.Cell(inv["total_patients"])),
				CustomerGrade: optionalString(row.Cell(inv["customer_grade"])),
				Notes:         optionalString(row.Cell(inv["notes"])),
			}
			if !mergeCustomer(customer, incoming) {
				// Nothing beyond the natural key; resolution already
				// created or found the row.
				return nil
			}
			return e.customers.Update(rowCtx, customer)
		})
		if err != nil {
			skipped++
			e.logger.Warn("customer row skipped", zap.Error(err))
			continue
		}
		// Cache only after the savepoint committed, so a rolled-back
		// create never leaks a phantom entity to later rows.
		resolved[rowKey] = rowCustomer
		processed++
	}

	return batchResult(models.TableCustomers, processed, skipped), nil
}

func (e *upsertEngine) upsertProducts(ctx context.Context, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	inv := invertMapping(mapping)
	processed, skipped := 0, 0

	for _, row := range table.Rows {
		err := e.inRowScope(ctx, func(rowCtx context.Context) error {
			name := row.Cell(inv["product_name"])
			product, err := e.resolver.ResolveProduct(rowCtx, name)
			if err != nil {
				return err
			}

			incoming := &models.Product{
				Description: optionalString(row.Cell(inv["description"])),
				Category:    optionalString(row.Cell(inv["category"])),
			}
			if !mergeProduct(product, incoming) {
				return nil
			}
			return e.products.Update(rowCtx, product)
		})
		if err != nil {
			skipped++
			e.logger.Warn("product row skipped", zap.Error(err))
			continue
		}
		processed++
	}

	return batchResult(models.TableProducts, processed, skipped), nil
}

// ============================================================================
// Transactional facts
// ============================================================================

func (e *upsertEngine) insertSalesRecords(ctx context.Context, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	inv := invertMapping(mapping)
	processed, skipped := 0, 0

	for _, row := range table.Rows {
		err := e.inRowScope(ctx, func(rowCtx context.Context) error {
			amount, ok := parseNumeric(row.Cell(inv["sale_amount"]))
			if !ok || amount <= 0 {
				return fmt.Errorf("sale amount missing or non-positive")
			}
			saleDate, ok := parseDate(row.Cell(inv["sale_date"]))
			if !ok {
				return fmt.Errorf("sale date missing or unparseable")
			}

			employee, err := e.resolver.ResolveEmployee(rowCtx, row.Cell(inv["employee_number"]), row.Cell(inv["employee_name"]))
			if err != nil {
				return err
			}
			customer, err := e.resolver.ResolveCustomer(rowCtx, row.Cell(inv["customer_name"]))
			if err != nil {
				return err
			}
			product, err := e.resolver.ResolveProduct(rowCtx, row.Cell(inv["product_name"]))
			if err != nil {
				return err
			}

			record := &models.SalesRecord{
				EmployeeID: employee.EmployeeID,
				CustomerID: customer.CustomerID,
				ProductID:  product.ProductID,
				SaleAmount: amount,
				SaleDate:   saleDate,
			}
			if err := e.sales.InsertSalesRecord(rowCtx, record); err != nil {
				return err
			}
			return e.sales.UpsertAssignment(rowCtx, employee.EmployeeID, customer.CustomerID)
		})
		if err != nil {
			skipped++
			e.logger.Warn("sales row skipped", zap.Error(err))
			continue
		}
		processed++
	}

	return batchResult(models.TableSalesRecords, processed, skipped), nil
}

func (e *upsertEngine) insertInteractionLogs(ctx context.Context, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	inv := invertMapping(mapping)
	processed, skipped := 0, 0

	for _, row := range table.Rows {
		err := e.inRowScope(ctx, func(rowCtx context.Context) error {
			employee, err := e.resolver.ResolveEmployee(rowCtx, row.Cell(inv["employee_number"]), row.Cell(inv["employee_name"]))
			if err != nil {
				return err
			}
			customer, err := e.resolver.ResolveCustomer(rowCtx, row.Cell(inv["customer_name"]))
			if err != nil {
				return err
			}

			log := &models.InteractionLog{
				EmployeeID:      employee.EmployeeID,
				CustomerID:      customer.CustomerID,
				InteractionType: optionalString(row.Cell(inv["interaction_type"])),
				Summary:         optionalString(row.Cell(inv["summary"])),
				Sentiment:       optionalString(row.Cell(inv["sentiment"])),
				ComplianceRisk:  optionalString(row.Cell(inv["compliance_risk"])),
			}
			if interactedAt, ok := parseDate(row.Cell(inv["interacted_at"])); ok {
				log.InteractedAt = interactedAt
			}
			return e.sales.InsertInteractionLog(rowCtx, log)
		})
		if err != nil {
			skipped++
			e.logger.Warn("interaction row skipped", zap.Error(err))
			continue
		}
		processed++
	}

	return batchResult(models.TableInteractionLogs, processed, skipped), nil
}

func (e *upsertEngine) upsertAssignments(ctx context.Context, table models.Table, mapping map[string]string) (*models.UpsertResult, error) {
	inv := invertMapping(mapping)
	processed, skipped := 0, 0

	for _, row := range table.Rows {
		err := e.inRowScope(ctx, func(rowCtx context.Context) error {
			employee, err := e.resolver.ResolveEmployee(rowCtx, row.Cell(inv["employee_number"]), row.Cell(inv["employee_name"]))
			if err != nil {
				return err
			}
			customer, err := e.resolver.ResolveCustomer(rowCtx, row.Cell(inv["customer_name"]))
			if err != nil {
				return err
			}
			return e.sales.UpsertAssignment(rowCtx, employee.EmployeeID, customer.CustomerID)
		})
		if err != nil {
			skipped++
			e.logger.Warn("assignment row skipped", zap.Error(err))
			continue
		}
		processed++
	}

	return batchResult(models.TableAssignmentMap, processed, skipped), nil
}

func (e *upsertEngine) UpsertPivotedSales(ctx context.Context, sales []PivotedSale) (*models.UpsertResult, error) {
	processed, skipped := 0, 0

	err := e.tx.InTx(ctx, func(txCtx context.Context) error {
		for _, sale := range sales {
			err := e.inRowScope(txCtx, func(rowCtx context.Context) error {
				employee, err := e.resolver.ResolveEmployee(rowCtx, sale.EmployeeNumber, sale.EmployeeName)
				if err != nil {
					return err
				}
				customer, err := e.resolver.ResolveCustomer(rowCtx, sale.CustomerName)
				if err != nil {
					return err
				}
				product, err := e.resolver.ResolveProduct(rowCtx, sale.ProductName)
				if err != nil {
					return err
				}

				record := &models.SalesRecord{
					EmployeeID: employee.EmployeeID,
					CustomerID: customer.CustomerID,
					ProductID:  product.ProductID,
					SaleAmount: sale.SaleAmount,
					SaleDate:   sale.SaleDate,
				}
				if err := e.sales.InsertSalesRecord(rowCtx, record); err != nil {
					return err
				}
				return e.sales.UpsertAssignment(rowCtx, employee.EmployeeID, customer.CustomerID)
			})
			if err != nil {
				skipped++
				e.logger.Warn("pivoted sale skipped", zap.Error(err))
				continue
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pivoted sales upsert failed: %w", err)
	}

	return batchResult(models.TableSalesRecords, processed, skipped), nil
}

// ============================================================================
// Helpers
// ============================================================================

// inRowScope runs one row's work inside a savepoint, so a failed statement
// cannot poison the enclosing batch transaction for sibling rows.
func (e *upsertEngine) inRowScope(ctx context.Context, fn func(ctx context.Context) error) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no database querier in context")
	}

	sp, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open row savepoint: %w", err)
	}

	spCtx := database.SetQuerier(ctx, sp)
	if err := fn(spCtx); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

// entityNouns names each table for report messages.
var entityNouns = map[models.TableKind]string{
	models.TableEmployees:       "employee",
	models.TableCustomers:       "customer",
	models.TableProducts:        "product",
	models.TableSalesRecords:    "sales record",
	models.TableInteractionLogs: "interaction log",
	models.TableAssignmentMap:   "assignment",
}

func batchResult(kind models.TableKind, processed, skipped int) *models.UpsertResult {
	noun := entityNouns[kind]
	if processed != 1 {
		noun = inflection.Plural(noun)
	}
	return &models.UpsertResult{
		ProcessedCount: processed,
		SkippedCount:   skipped,
		Message:        fmt.Sprintf("%d %s processed, %d rows skipped", processed, noun, skipped),
	}
}

// mergeEmployee overlays non-empty incoming fields onto existing.
func mergeEmployee(existing, incoming *models.Employee) {
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	mergeString(&existing.Team, incoming.Team)
	mergeString(&existing.Position, incoming.Position)
	mergeString(&existing.BusinessUnit, incoming.BusinessUnit)
	mergeString(&existing.Branch, incoming.Branch)
	mergeString(&existing.ContactNumber, incoming.ContactNumber)
	mergeInt64(&existing.BaseSalary, incoming.BaseSalary)
	mergeInt64(&existing.IncentivePay, incoming.IncentivePay)
	mergeInt64(&existing.AvgMonthlyBudget, incoming.AvgMonthlyBudget)
	mergeString(&existing.LatestEvaluation, incoming.LatestEvaluation)
}

// mergeCustomer overlays non-empty incoming fields; reports whether
// anything changed.
func mergeCustomer(existing, incoming *models.Customer) bool {
	changed := false
	changed = mergeString(&existing.DoctorName, incoming.DoctorName) || changed
	changed = mergeInt64(&existing.TotalPatients, incoming.TotalPatients) || changed
	changed = mergeString(&existing.CustomerGrade, incoming.CustomerGrade) || changed
	changed = mergeString(&existing.Notes, incoming.Notes) || changed
	return changed
}

func mergeProduct(existing, incoming *models.Product) bool {
	changed := false
	changed = mergeString(&existing.Description, incoming.Description) || changed
	changed = mergeString(&existing.Category, incoming.Category) || changed
	return changed
}

func mergeString(dst **string, src *string) bool {
	if src == nil {
		return false
	}
	*dst = src
	return true
}

func mergeInt64(dst **int64, src *int64) bool {
	if src == nil {
		return false
	}
	*dst = src
	return true
}
