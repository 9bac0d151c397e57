package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/database"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/repositories"
)

// EntityResolver finds or creates the master-data row behind a name or
// identifier from an uploaded sheet. All methods expect to run inside the
// batch transaction the upsert engine opened.
type EntityResolver interface {
	// ResolveEmployee resolves strictly by employee number. A blank number is
	// ErrMissingNaturalKey: employee names are not unique, so guessing by
	// name would silently attach sales to the wrong person.
	ResolveEmployee(ctx context.Context, employeeNumber, name string) (*models.Employee, error)
	// ResolveCustomer splits an embedded address out of rawName and resolves
	// by (clean name, address).
	ResolveCustomer(ctx context.Context, rawName string) (*models.Customer, error)
	ResolveProduct(ctx context.Context, name string) (*models.Product, error)
}

type entityResolver struct {
	employees repositories.EmployeeRepository
	customers repositories.CustomerRepository
	products  repositories.ProductRepository
	logger    *zap.Logger
}

// NewEntityResolver creates an EntityResolver over the master-data
// repositories.
func NewEntityResolver(
	employees repositories.EmployeeRepository,
	customers repositories.CustomerRepository,
	products repositories.ProductRepository,
	logger *zap.Logger,
) EntityResolver {
	return &entityResolver{
		employees: employees,
		customers: customers,
		products:  products,
		logger:    logger.Named("entity-resolver"),
	}
}

var _ EntityResolver = (*entityResolver)(nil)

func (r *entityResolver) ResolveEmployee(ctx context.Context, employeeNumber, name string) (*models.Employee, error) {
	employeeNumber = strings.TrimSpace(employeeNumber)
	if employeeNumber == "" {
		return nil, fmt.Errorf("employee has no employee number: %w", apperrors.ErrMissingNaturalKey)
	}

	employee, err := r.employees.GetByEmployeeNumber(ctx, employeeNumber)
	if err == nil {
		return employee, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = employeeNumber
	}
	candidate := &models.Employee{
		EmployeeNumber: &employeeNumber,
		Name:           name,
	}

	createErr := r.createOptimistic(ctx, func(spCtx context.Context) error {
		return r.employees.Create(spCtx, candidate)
	})
	if createErr == nil {
		r.logger.Info("created employee", zap.String("employee_number", employeeNumber))
		return candidate, nil
	}
	if !errors.Is(createErr, apperrors.ErrConflict) {
		return nil, createErr
	}

	// A concurrent writer created it between our lookup and insert.
	// Re-query exactly once; a second miss means something is wrong enough
	// to surface instead of loop.
	employee, err = r.employees.GetByEmployeeNumber(ctx, employeeNumber)
	if err == nil {
		return employee, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("employee %q vanished after conflict: %w", employeeNumber, apperrors.ErrConcurrentCreateConflict)
	}
	return nil, err
}

func (r *entityResolver) ResolveCustomer(ctx context.Context, rawName string) (*models.Customer, error) {
	cleanName, address := SplitCustomerName(rawName)
	if cleanName == "" {
		return nil, fmt.Errorf("customer has no name: %w", apperrors.ErrMissingNaturalKey)
	}
	addressPtr := optionalString(address)

	customer, err := r.customers.GetByNameAndAddress(ctx, cleanName, addressPtr)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	candidate := &models.Customer{
		CustomerName: cleanName,
		Address:      addressPtr,
	}

	createErr := r.createOptimistic(ctx, func(spCtx context.Context) error {
		return r.customers.Create(spCtx, candidate)
	})
	if createErr == nil {
		r.logger.Info("created customer",
			zap.String("customer_name", cleanName),
			zap.Bool("has_address", addressPtr != nil))
		return candidate, nil
	}
	if !errors.Is(createErr, apperrors.ErrConflict) {
		return nil, createErr
	}

	customer, err = r.customers.GetByNameAndAddress(ctx, cleanName, addressPtr)
	if err == nil {
		return customer, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("customer %q vanished after conflict: %w", cleanName, apperrors.ErrConcurrentCreateConflict)
	}
	return nil, err
}

func (r *entityResolver) ResolveProduct(ctx context.Context, name string) (*models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("product has no name: %w", apperrors.ErrMissingNaturalKey)
	}

	product, err := r.products.GetByName(ctx, name)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	candidate := &models.Product{
		ProductName: name,
		IsActive:    true,
	}

	createErr := r.createOptimistic(ctx, func(spCtx context.Context) error {
		return r.products.Create(spCtx, candidate)
	})
	if createErr == nil {
		r.logger.Info("created product", zap.String("product_name", name))
		return candidate, nil
	}
	if !errors.Is(createErr, apperrors.ErrConflict) {
		return nil, createErr
	}

	product, err = r.products.GetByName(ctx, name)
	if err == nil {
		return product, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("product %q vanished after conflict: %w", name, apperrors.ErrConcurrentCreateConflict)
	}
	return nil, err
}

// createOptimistic runs an insert inside a savepoint so a unique-constraint
// violation from a concurrent writer rolls back cleanly without poisoning
// the enclosing batch transaction.
func (r *entityResolver) createOptimistic(ctx context.Context, create func(ctx context.Context) error) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no database querier in context")
	}

	sp, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	spCtx := database.SetQuerier(ctx, sp)
	if err := create(spCtx); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}
