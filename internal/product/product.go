// Package product exposes the product catalogue lookups used when invoice
// line items snapshot a product at creation time.
package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Product model.
type Product struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Name        string
	Description string
	Price       float64
	CreatedAt   time.Time
}

// Repository provides PostgreSQL backed product lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByAccountAndID retrieves a product owned by the given account.
func (r *Repository) FindByAccountAndID(ctx context.Context, accountID, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, account_id, name, description, price, created_at
		FROM products
		WHERE id = $2 AND account_id = $1 AND deleted_at IS NULL`

	var (
		p           Product
		description pgtype.Text
		price       pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, query, accountID, id).Scan(
		&p.ID, &p.AccountID, &p.Name, &description, &price, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	if price.Valid {
		f, _ := price.Float64Value()
		p.Price = f.Float64
	}
	return &p, nil
}
