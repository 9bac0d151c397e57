// Package repositories provides data access for the CRM tables. Repositories
// are stateless: every method resolves the active Querier (pool or batch
// transaction) from the context.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pharmaflow/pharmaflow-engine/pkg/database"
)

// querierFrom resolves the active database querier from context.
func querierFrom(ctx context.Context) (database.Querier, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no database querier in context")
	}
	return q, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
