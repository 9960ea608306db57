package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// StatusChange is one reclassification persisted by the due-status sweep.
type StatusChange struct {
	ID     uuid.UUID
	Status Status
}

// ListFilter narrows account-scoped invoice listings. The zero filter is the
// default (cacheable) listing.
type ListFilter struct {
	Status      Status
	IsRecurring *bool
	From        time.Time
	To          time.Time
	Search      string
	Limit       int
	Offset      int
}

// Default reports whether the filter selects the plain first page, which is
// the only listing served from the read cache.
func (f ListFilter) Default() bool {
	return f.Status == "" && f.IsRecurring == nil && f.From.IsZero() &&
		f.To.IsZero() && f.Search == "" && f.Offset == 0 &&
		(f.Limit == 0 || f.Limit == shared.DefaultListLimit)
}

// RepositoryPort defines data access for invoices. Every account-scoped query
// filters soft-deleted rows with an explicit deleted_at predicate.
type RepositoryPort interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error

	// CreateSuccessor inserts the next invoice of a recurring series and
	// clears the origin's recurrence in the same transaction, so a partial
	// failure can never leave a series eligible for a second generation.
	CreateSuccessor(ctx context.Context, clone, origin *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByAccountAndID(ctx context.Context, accountID, id uuid.UUID) (*Invoice, error)
	SoftDelete(ctx context.Context, accountID, id uuid.UUID) error
	List(ctx context.Context, accountID uuid.UUID, filter ListFilter) ([]Invoice, error)

	// Sweep queries are global across accounts.
	FindByStatus(ctx context.Context, status Status) ([]Invoice, error)
	FindRecurringDueOnOrBefore(ctx context.Context, date time.Time) ([]Invoice, error)
	UpdateStatuses(ctx context.Context, changes []StatusChange) error
}
