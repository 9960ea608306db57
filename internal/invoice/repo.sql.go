package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoiceapp/invoiceapp/internal/platform/db"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `
	id, account_id, client_id, number, issue_date, due_date,
	status, previous_status, subtotal, tax_rate, tax_amount, total, notes,
	is_recurring, recurring_frequency, next_generation_date, recurring_series_id,
	deleted_at, created_at, updated_at`

// Create inserts the invoice and its line items in one transaction.
func (r *Repository) Create(ctx context.Context, inv *Invoice) error {
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertInvoice(ctx, tx, inv)
	})
}

// CreateSuccessor inserts the next invoice of a recurring series and retires
// the origin's recurrence in the same transaction. Either both rows move or
// neither does; a crash between them would otherwise bill the series twice.
func (r *Repository) CreateSuccessor(ctx context.Context, clone, origin *Invoice) error {
	now := time.Now()
	clone.CreatedAt = now
	clone.UpdatedAt = now

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertInvoice(ctx, tx, clone); err != nil {
			return err
		}

		result, err := tx.Exec(ctx, `
			UPDATE invoices SET is_recurring = FALSE, next_generation_date = NULL, updated_at = $2
			WHERE id = $1 AND deleted_at IS NULL`, origin.ID, now)
		if err != nil {
			return fmt.Errorf("invoice: retire origin %s: %w", origin.Number, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("invoice: %w", shared.ErrNotFound)
		}
		return nil
	})
}

func insertInvoice(ctx context.Context, tx pgx.Tx, inv *Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := tx.Exec(ctx, query,
		inv.ID, inv.AccountID, inv.ClientID, inv.Number, inv.IssueDate, inv.DueDate,
		string(inv.Status), statusText(inv.PreviousStatus),
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, textOrNil(inv.Notes),
		inv.IsRecurring, freqText(inv.Frequency), dateOrNil(inv.NextGenerationDate), inv.SeriesID,
		inv.DeletedAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("invoice: number %s already exists: %w", inv.Number, err)
		}
		return fmt.Errorf("invoice: insert: %w", err)
	}

	return insertItems(ctx, tx, inv)
}

// Update rewrites the invoice row and replaces its line items in one
// transaction.
func (r *Repository) Update(ctx context.Context, inv *Invoice) error {
	inv.UpdatedAt = time.Now()

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE invoices SET
				client_id = $2, issue_date = $3, due_date = $4,
				status = $5, previous_status = $6,
				subtotal = $7, tax_rate = $8, tax_amount = $9, total = $10, notes = $11,
				is_recurring = $12, recurring_frequency = $13,
				next_generation_date = $14, recurring_series_id = $15,
				updated_at = $16
			WHERE id = $1 AND deleted_at IS NULL`

		result, err := tx.Exec(ctx, query,
			inv.ID, inv.ClientID, inv.IssueDate, inv.DueDate,
			string(inv.Status), statusText(inv.PreviousStatus),
			inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, textOrNil(inv.Notes),
			inv.IsRecurring, freqText(inv.Frequency), dateOrNil(inv.NextGenerationDate), inv.SeriesID,
			inv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("invoice: update: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("invoice: %w", shared.ErrNotFound)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return fmt.Errorf("invoice: clear items: %w", err)
		}
		return insertItems(ctx, tx, inv)
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, inv *Invoice) error {
	query := `
		INSERT INTO invoice_items (
			id, invoice_id, product_id, product_name, product_description,
			quantity, unit_price, total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.InvoiceID = inv.ID
		_, err := tx.Exec(ctx, query,
			item.ID, item.InvoiceID, item.ProductID, item.ProductName,
			textOrNil(item.ProductDescription), item.Quantity, item.UnitPrice, item.Total,
		)
		if err != nil {
			return fmt.Errorf("invoice: insert item: %w", err)
		}
	}
	return nil
}

// FindByID retrieves an invoice regardless of owner. Used by public token
// actions where the token already proves the relationship.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	return r.findOne(ctx, query, id)
}

// FindByAccountAndID retrieves an invoice owned by the given account.
func (r *Repository) FindByAccountAndID(ctx context.Context, accountID, id uuid.UUID) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $2 AND account_id = $1 AND deleted_at IS NULL`
	return r.findOne(ctx, query, accountID, id)
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invoice: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// SoftDelete marks the invoice deleted; rows are never hard-deleted here.
func (r *Repository) SoftDelete(ctx context.Context, accountID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoices SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND account_id = $1 AND deleted_at IS NULL`, accountID, id)
	if err != nil {
		return fmt.Errorf("invoice: soft delete: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("invoice: %w", shared.ErrNotFound)
	}
	return nil
}

// List returns account-scoped invoices with optional filtering.
func (r *Repository) List(ctx context.Context, accountID uuid.UUID, filter ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE account_id = $1 AND deleted_at IS NULL`
	args := []any{accountID}
	argNum := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.IsRecurring != nil {
		query += fmt.Sprintf(" AND is_recurring = $%d", argNum)
		args = append(args, *filter.IsRecurring)
		argNum++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND issue_date >= $%d", argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND issue_date <= $%d", argNum)
		args = append(args, filter.To)
		argNum++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND number ILIKE $%d", argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	query += " ORDER BY issue_date DESC, created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultListLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)
	argNum++
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	return r.queryWithItems(ctx, query, args...)
}

// FindByStatus returns all invoices in the given status, across accounts.
func (r *Repository) FindByStatus(ctx context.Context, status Status) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE status = $1 AND deleted_at IS NULL`
	return r.queryWithItems(ctx, query, string(status))
}

// FindRecurringDueOnOrBefore returns recurring invoices whose next generation
// date has arrived, across accounts.
func (r *Repository) FindRecurringDueOnOrBefore(ctx context.Context, date time.Time) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE is_recurring = TRUE AND next_generation_date <= $1 AND deleted_at IS NULL`
	return r.queryWithItems(ctx, query, date)
}

// UpdateStatuses persists sweep reclassifications in bulk within one
// transaction.
func (r *Repository) UpdateStatuses(ctx context.Context, changes []StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, change := range changes {
			_, err := tx.Exec(ctx, `
				UPDATE invoices SET status = $2, updated_at = NOW()
				WHERE id = $1 AND deleted_at IS NULL`, change.ID, string(change.Status))
			if err != nil {
				return fmt.Errorf("invoice: update status %s: %w", change.ID, err)
			}
		}
		return nil
	})
}

func (r *Repository) queryWithItems(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invoice: query: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("invoice: rows: %w", err)
	}

	for i := range invoices {
		items, err := r.listItems(ctx, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		invoices[i].Items = items
	}
	return invoices, nil
}

func (r *Repository) listItems(ctx context.Context, invoiceID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, product_id, product_name, product_description,
			quantity, unit_price, total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoice: list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item Item
			desc pgtype.Text
		)
		if err := rows.Scan(
			&item.ID, &item.InvoiceID, &item.ProductID, &item.ProductName,
			&desc, &item.Quantity, &item.UnitPrice, &item.Total,
		); err != nil {
			return nil, fmt.Errorf("invoice: scan item: %w", err)
		}
		item.ProductDescription = desc.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv        Invoice
		status     string
		prevStatus pgtype.Text
		notes      pgtype.Text
		freq       pgtype.Text
		nextGen    pgtype.Date
		seriesID   pgtype.UUID
		deletedAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&inv.ID, &inv.AccountID, &inv.ClientID, &inv.Number, &inv.IssueDate, &inv.DueDate,
		&status, &prevStatus, &inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.Total, &notes,
		&inv.IsRecurring, &freq, &nextGen, &seriesID,
		&deletedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = Status(status)
	if prevStatus.Valid {
		prev := Status(prevStatus.String)
		inv.PreviousStatus = &prev
	}
	inv.Notes = notes.String
	inv.Frequency = Frequency(freq.String)
	if nextGen.Valid {
		d := nextGen.Time
		inv.NextGenerationDate = &d
	}
	if seriesID.Valid {
		id := uuid.UUID(seriesID.Bytes)
		inv.SeriesID = &id
	}
	if deletedAt.Valid {
		d := deletedAt.Time
		inv.DeletedAt = &d
	}
	return &inv, nil
}

func statusText(s *Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func freqText(f Frequency) any {
	if f == "" {
		return nil
	}
	return string(f)
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
