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

// CustomerRepository provides data access for customer (medical institution)
// records. The natural key is (customer_name, address).
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	Update(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, customerID int64) (*models.Customer, error)
	// GetByNameAndAddress treats a nil address as part of the key: a customer
	// stored without an address only matches a lookup without one.
	GetByNameAndAddress(ctx context.Context, name string, address *string) (*models.Customer, error)
}

type customerRepository struct{}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository() CustomerRepository {
	return &customerRepository{}
}

var _ CustomerRepository = (*customerRepository)(nil)

const customerColumns = `customer_id, customer_name, address, doctor_name,
	total_patients, customer_grade, notes, created_at, updated_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(
		&c.CustomerID, &c.CustomerName, &c.Address, &c.DoctorName,
		&c.TotalPatients, &c.CustomerGrade, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	query := `
		INSERT INTO customers (
			customer_name, address, doctor_name, total_patients,
			customer_grade, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING customer_id, created_at, updated_at`

	err = q.QueryRow(ctx, query,
		customer.CustomerName,
		customer.Address,
		customer.DoctorName,
		customer.TotalPatients,
		customer.CustomerGrade,
		customer.Notes,
		now,
		now,
	).Scan(&customer.CustomerID, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("customer name/address already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *customerRepository) Update(ctx context.Context, customer *models.Customer) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE customers
		SET customer_name = $2, address = $3, doctor_name = $4,
		    total_patients = $5, customer_grade = $6, notes = $7, updated_at = $8
		WHERE customer_id = $1
		RETURNING updated_at`

	err = q.QueryRow(ctx, query,
		customer.CustomerID,
		customer.CustomerName,
		customer.Address,
		customer.DoctorName,
		customer.TotalPatients,
		customer.CustomerGrade,
		customer.Notes,
		time.Now(),
	).Scan(&customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("customer %d: %w", customer.CustomerID, apperrors.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("customer name/address already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update customer: %w", err)
	}

	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, customerID int64) (*models.Customer, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM customers WHERE customer_id = $1`, customerColumns)

	customer, err := scanCustomer(q.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", customerID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepository) GetByNameAndAddress(ctx context.Context, name string, address *string) (*models.Customer, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	// IS NOT DISTINCT FROM matches NULL addresses, mirroring the
	// NULLS NOT DISTINCT unique constraint.
	query := fmt.Sprintf(`SELECT %s FROM customers
		WHERE customer_name = $1 AND address IS NOT DISTINCT FROM $2`, customerColumns)

	customer, err := scanCustomer(q.QueryRow(ctx, query, name, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %q: %w", name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer by name/address: %w", err)
	}

	return customer, nil
}
