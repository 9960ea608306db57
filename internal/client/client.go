// Package client exposes the invoiced-party lookups used by the invoice core.
package client

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

// Client model.
type Client struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// Repository provides PostgreSQL backed client lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves a client by id, regardless of owner. Used by notification
// delivery where the invoice already proves the relationship.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return r.get(ctx, `
		SELECT id, account_id, name, email, phone, address, created_at
		FROM clients
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

// FindByAccountAndID retrieves a client owned by the given account.
func (r *Repository) FindByAccountAndID(ctx context.Context, accountID, id uuid.UUID) (*Client, error) {
	return r.get(ctx, `
		SELECT id, account_id, name, email, phone, address, created_at
		FROM clients
		WHERE id = $2 AND account_id = $1 AND deleted_at IS NULL`, accountID, id)
}

func (r *Repository) get(ctx context.Context, query string, args ...any) (*Client, error) {
	var (
		c              Client
		phone, address pgtype.Text
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Email, &phone, &address, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	c.Address = address.String
	return &c, nil
}
