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

// ProductRepository provides data access for pharmaceutical products.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, productID int64) (*models.Product, error)
	GetByName(ctx context.Context, name string) (*models.Product, error)
}

type productRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository() ProductRepository {
	return &productRepository{}
}

var _ ProductRepository = (*productRepository)(nil)

const productColumns = `product_id, product_name, description, category, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ProductID, &p.ProductName, &p.Description, &p.Category,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	query := `
		INSERT INTO products (product_name, description, category, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING product_id, created_at, updated_at`

	err = q.QueryRow(ctx, query,
		product.ProductName,
		product.Description,
		product.Category,
		product.IsActive,
		now,
		now,
	).Scan(&product.ProductID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product name already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	q, err := querierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET product_name = $2, description = $3, category = $4, is_active = $5, updated_at = $6
		WHERE product_id = $1
		RETURNING updated_at`

	err = q.QueryRow(ctx, query,
		product.ProductID,
		product.ProductName,
		product.Description,
		product.Category,
		product.IsActive,
		time.Now(),
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %d: %w", product.ProductID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

func (r *productRepository) GetByID(ctx context.Context, productID int64) (*models.Product, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE product_id = $1`, productColumns)

	product, err := scanProduct(q.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

func (r *productRepository) GetByName(ctx context.Context, name string) (*models.Product, error) {
	q, err := querierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE product_name = $1`, productColumns)

	product, err := scanProduct(q.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %q: %w", name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by name: %w", err)
	}

	return product, nil
}
