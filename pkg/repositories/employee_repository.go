package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaflow/pharmaflow-engine/pkg/apperrors"
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// EmployeeRepository provides data access for employee HR records.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	GetByID(ctx context.Context, employeeID int64) (*models.Employee, error)
	// GetByEmployeeNumber looks an employee up by the natural key. Name-based
	// lookup is deliberately absent: names are not unique.
	GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.Employee, error)
}

type employeeRepository struct{}

// NewEmployeeRepository creates a new EmployeeRepository.
func NewEmployeeRepository() EmployeeRepository {
	return &employeeRepository{}
}

var _ EmployeeRepository = (*employeeRepository)(nil)

const employeeColumns = `employee_id, employee_number, name, team, position, business_unit,
	branch, contact_number, base_salary, incentive_pay, avg_monthly_budget,
	latest_evaluation, created_at, updated_at`

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	err := row.Scan(
		&e.EmployeeID, &e.EmployeeNumber, &e.Name, &e.Team, &e.Position,
		&e.BusinessUnit, &e.Branch, &e.ContactNumber, &e.BaseSalary,
		&e.IncentivePay, &e.AvgMonthlyBudget, &e.LatestEvaluation,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *employeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	query := `
		INSERT INTO employees (
			employee_number, name, team, position, business_unit, branch,
			contact_number, base_salary, incentive_pay, avg_monthly_budget,
			latest_evaluation, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING employee_id, created_at, updated_at`

	err = q.QueryRow(ctx, query,
		employee.EmployeeNumber,
		employee.Name,
		employee.Team,
		employee.Position,
		employee.BusinessUnit,
		employee.Branch,
		employee.ContactNumber,
		employee.BaseSalary,
		employee.IncentivePay,
		employee.AvgMonthlyBudget,
		employee.LatestEvaluation,
		now,
		now,
	).Scan(&employee.EmployeeID, &employee.CreatedAt, &employee.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("employee number already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}

	return nil
}

func (r *employeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE employees
		SET name = $2, team = $3, position = $4, business_unit = $5, branch = $6,
		    contact_number = $7, base_salary = $8, incentive_pay = $9,
		    avg_monthly_budget = $10, latest_evaluation = $11, updated_at = $12
		WHERE employee_id = $1
		RETURNING updated_at`

	err = q.QueryRow(ctx, query,
		employee.EmployeeID,
		employee.Name,
		employee.Team,
		employee.Position,
		employee.BusinessUnit,
		employee.Branch,
		employee.ContactNumber,
		employee.BaseSalary,
		employee.IncentivePay,
		employee.AvgMonthlyBudget,
		employee.LatestEvaluation,
		time.Now(),
	).Scan(&employee.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("employee %d: %w", employee.EmployeeID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to update employee: %w", err)
	}

	return nil
}

func (r *employeeRepository) GetByID(ctx context.Context, employeeID int64) (*models.Employee, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM employees WHERE employee_id = $1`, employeeColumns)

	employee, err := scanEmployee(q.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("employee %d: %w", employeeID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return employee, nil
}

func (r *employeeRepository) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.Employee, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM employees WHERE employee_number = $1`, employeeColumns)

	employee, err := scanEmployee(q.QueryRow(ctx, query, employeeNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("employee number %q: %w", employeeNumber, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get employee by number: %w", err)
	}

	return employee, nil
}
