package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// SalesRepository provides data access for append-only transactional facts:
// sales records, interaction logs and assignment mappings.
type SalesRepository interface {
	InsertSalesRecord(ctx context.Context, record *models.SalesRecord) error
	InsertInteractionLog(ctx context.Context, log *models.InteractionLog) error
	// UpsertAssignment links an employee to a customer; re-linking an
	// existing pair is a no-op.
	UpsertAssignment(ctx context.Context, employeeID, customerID int64) error
	CountSalesByEmployee(ctx context.Context, employeeID int64) (int64, error)
}

type salesRepository struct{}

// NewSalesRepository creates a new SalesRepository.
func NewSalesRepository() SalesRepository {
	return &salesRepository{}
}

var _ SalesRepository = (*salesRepository)(nil)

func (r *salesRepository) InsertSalesRecord(ctx context.Context, record *models.SalesRecord) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sales_records (employee_id, customer_id, product_id, sale_amount, sale_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING sales_record_id, created_at`

	err = q.QueryRow(ctx, query,
		record.EmployeeID,
		record.CustomerID,
		record.ProductID,
		record.SaleAmount,
		record.SaleDate,
		time.Now(),
	).Scan(&record.SalesRecordID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sales record: %w", err)
	}

	return nil
}

func (r *salesRepository) InsertInteractionLog(ctx context.Context, log *models.InteractionLog) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	if log.InteractedAt.IsZero() {
		log.InteractedAt = time.Now()
	}

	query := `
		INSERT INTO interaction_logs (
			employee_id, customer_id, interaction_type, summary,
			sentiment, compliance_risk, interacted_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING interaction_id, created_at`

	err = q.QueryRow(ctx, query,
		log.EmployeeID,
		log.CustomerID,
		log.InteractionType,
		log.Summary,
		log.Sentiment,
		log.ComplianceRisk,
		log.InteractedAt,
		time.Now(),
	).Scan(&log.InteractionID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert interaction log: %w", err)
	}

	return nil
}

func (r *salesRepository) UpsertAssignment(ctx context.Context, employeeID, customerID int64) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO assignment_map (employee_id, customer_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id, customer_id) DO NOTHING`

	if _, err := q.Exec(ctx, query, employeeID, customerID, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}

	return nil
}

func (r *salesRepository) CountSalesByEmployee(ctx context.Context, employeeID int64) (int64, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = q.QueryRow(ctx, `SELECT COUNT(*) FROM sales_records WHERE employee_id = $1`, employeeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales records: %w", err)
	}

	return count, nil
}
