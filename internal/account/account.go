// Package account exposes the minimal account-holder lookup the invoice core
// needs for ownership checks and notification recipients.
package account

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

// Account model.
type Account struct {
	ID          uuid.UUID
	Email       string
	CompanyName string
	Phone       string
	Address     string
	LogoURL     string
	CreatedAt   time.Time
}

// Repository provides PostgreSQL backed account lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves an account by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `
		SELECT id, email, company_name, phone, address, logo_url, created_at
		FROM accounts
		WHERE id = $1`

	var (
		a                     Account
		phone, address, logoU pgtype.Text
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Email, &a.CompanyName, &phone, &address, &logoU, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	a.Phone = phone.String
	a.Address = address.String
	a.LogoURL = logoU.String
	return &a, nil
}
