package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/invoiceapp/invoiceapp/internal/client"
	"github.com/invoiceapp/invoiceapp/internal/product"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// NumberAllocator produces unique invoice numbers.
type NumberAllocator interface {
	Allocate(ctx context.Context, accountID uuid.UUID) (string, error)
}

// ClientDirectory resolves clients owned by an account.
type ClientDirectory interface {
	FindByAccountAndID(ctx context.Context, accountID, id uuid.UUID) (*client.Client, error)
}

// ProductCatalog resolves products owned by an account for line snapshots.
type ProductCatalog interface {
	FindByAccountAndID(ctx context.Context, accountID, id uuid.UUID) (*product.Product, error)
}

// ItemInput is one requested line item.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Input carries the user-controlled invoice fields for create and update.
type Input struct {
	ClientID    uuid.UUID
	IssueDate   time.Time
	DueDate     time.Time
	Status      Status
	TaxRate     float64
	Notes       string
	IsRecurring bool
	Frequency   Frequency
	Items       []ItemInput
}

// Service handles the synchronous, account-holder-driven invoice operations.
type Service struct {
	repo      RepositoryPort
	clients   ClientDirectory
	products  ProductCatalog
	numbers   NumberAllocator
	notifier  Notifier
	cache     *Cache
	logger    *slog.Logger
	listGroup singleflight.Group
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, clients ClientDirectory, products ProductCatalog, numbers NumberAllocator, notifier Notifier, cache *Cache, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		clients:  clients,
		products: products,
		numbers:  numbers,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}
}

func (s *Service) validate(input Input) error {
	if input.ClientID == uuid.Nil {
		return fmt.Errorf("client id required: %w", shared.ErrValidation)
	}
	if input.IssueDate.IsZero() || input.DueDate.IsZero() {
		return fmt.Errorf("issue and due dates required: %w", shared.ErrValidation)
	}
	if input.DueDate.Before(input.IssueDate) {
		return fmt.Errorf("due date before issue date: %w", shared.ErrValidation)
	}
	if !input.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", input.Status, shared.ErrValidation)
	}
	if input.TaxRate < 0 || input.TaxRate > 100 {
		return fmt.Errorf("tax rate out of range: %w", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("at least one item required: %w", shared.ErrValidation)
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item quantity must be positive: %w", shared.ErrValidation)
		}
	}
	if input.IsRecurring && input.Frequency == "" {
		return fmt.Errorf("recurring frequency required: %w", shared.ErrValidation)
	}
	return nil
}

// Create builds a new invoice for the account. The invoice number comes from
// the allocator; an allocation failure aborts creation outright so no invoice
// is ever saved without a number.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, input Input) (*Invoice, error) {
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}

	cl, err := s.clients.FindByAccountAndID(ctx, accountID, input.ClientID)
	if err != nil {
		return nil, err
	}

	number, err := s.numbers.Allocate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		ID:          uuid.New(),
		AccountID:   accountID,
		ClientID:    cl.ID,
		Number:      number,
		IssueDate:   input.IssueDate,
		DueDate:     input.DueDate,
		Status:      input.Status,
		TaxRate:     input.TaxRate,
		Notes:       input.Notes,
		IsRecurring: input.IsRecurring,
	}
	if input.IsRecurring {
		inv.Frequency = input.Frequency
		next := input.Frequency.Advance(input.IssueDate)
		inv.NextGenerationDate = &next
	}

	if err := s.attachItems(ctx, accountID, inv, input.Items); err != nil {
		return nil, err
	}
	inv.CalculateTotals()

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.evict(ctx, accountID)
	if inv.Status == StatusSent {
		s.notifier.InvoiceCreated(ctx, inv)
	}

	s.logger.Info("invoice created",
		slog.String("number", inv.Number),
		slog.String("account_id", accountID.String()))
	return inv, nil
}

// Update rewrites the invoice from the request, replacing its items and
// recomputing totals. Status changes trigger the matching notifications, and
// cancelling an active recurring invoice stops its series.
func (s *Service) Update(ctx context.Context, accountID, invoiceID uuid.UUID, input Input) (*Invoice, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	inv, err := s.repo.FindByAccountAndID(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	oldStatus := inv.Status

	cl, err := s.clients.FindByAccountAndID(ctx, accountID, input.ClientID)
	if err != nil {
		return nil, err
	}

	inv.ClientID = cl.ID
	inv.IssueDate = input.IssueDate
	inv.DueDate = input.DueDate
	inv.Status = input.Status
	inv.TaxRate = input.TaxRate
	inv.Notes = input.Notes

	wasRecurring := inv.IsRecurring
	inv.IsRecurring = input.IsRecurring
	if input.IsRecurring {
		inv.Frequency = input.Frequency
		if !wasRecurring || inv.NextGenerationDate == nil {
			next := input.Frequency.Advance(input.IssueDate)
			inv.NextGenerationDate = &next
		}
	} else {
		inv.Frequency = ""
		inv.NextGenerationDate = nil
	}

	if input.Status == StatusCancelled && inv.IsRecurring {
		inv.IsRecurring = false
		inv.NextGenerationDate = nil
		s.logger.Info("stopped recurring series on cancellation",
			slog.String("number", inv.Number))
	}

	inv.Items = nil
	if err := s.attachItems(ctx, accountID, inv, input.Items); err != nil {
		return nil, err
	}
	inv.CalculateTotals()

	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.evict(ctx, accountID)
	if oldStatus != inv.Status {
		switch inv.Status {
		case StatusSent:
			s.notifier.InvoiceCreated(ctx, inv)
		case StatusPaid:
			s.notifier.PaymentConfirmed(ctx, inv)
		}
	}

	s.logger.Info("invoice updated", slog.String("number", inv.Number))
	return inv, nil
}

// Delete soft-deletes the invoice.
func (s *Service) Delete(ctx context.Context, accountID, invoiceID uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, accountID, invoiceID); err != nil {
		return err
	}
	s.evict(ctx, accountID)
	s.logger.Info("invoice deleted", slog.String("invoice_id", invoiceID.String()))
	return nil
}

// Get retrieves one invoice owned by the account.
func (s *Service) Get(ctx context.Context, accountID, invoiceID uuid.UUID) (*Invoice, error) {
	return s.repo.FindByAccountAndID(ctx, accountID, invoiceID)
}

// List returns the account's invoices. The unfiltered first page is served
// from the read cache when warm.
func (s *Service) List(ctx context.Context, accountID uuid.UUID, filter ListFilter) ([]Invoice, error) {
	if !filter.Default() {
		return s.repo.List(ctx, accountID, filter)
	}

	if cached, ok := s.cache.GetList(ctx, accountID); ok {
		return cached, nil
	}

	// Collapse concurrent rebuilds of the same account's list after a
	// cache miss; only one request hits the database.
	ch := s.listGroup.DoChan(accountID.String(), func() (any, error) {
		invoices, err := s.repo.List(context.WithoutCancel(ctx), accountID, filter)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetList(context.WithoutCancel(ctx), accountID, invoices); err != nil {
			s.logger.Warn("cache invoice list", slog.Any("error", err))
		}
		return invoices, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Invoice), nil
	}
}

// StopRecurring terminates the invoice's recurring series explicitly.
func (s *Service) StopRecurring(ctx context.Context, accountID, invoiceID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.FindByAccountAndID(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsRecurring {
		return nil, fmt.Errorf("invoice %s: %w", inv.Number, shared.ErrNotRecurring)
	}

	inv.IsRecurring = false
	inv.NextGenerationDate = nil
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.evict(ctx, accountID)
	s.logger.Info("recurring series stopped", slog.String("number", inv.Number))
	return inv, nil
}

// ResolveCancellation settles a client's pending cancellation request.
func (s *Service) ResolveCancellation(ctx context.Context, accountID, invoiceID uuid.UUID, approve bool) (*Invoice, error) {
	inv, err := s.repo.FindByAccountAndID(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusCancellationRequested {
		return nil, fmt.Errorf("no pending cancellation request: %w", shared.ErrValidation)
	}

	inv.ResolveClaim(approve)
	if !inv.IsRecurring {
		inv.NextGenerationDate = nil
	}
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.evict(ctx, accountID)
	s.notifier.CancellationResolved(ctx, inv, approve)
	return inv, nil
}

// ResolvePayment settles a client's pending payment claim.
func (s *Service) ResolvePayment(ctx context.Context, accountID, invoiceID uuid.UUID, approve bool) (*Invoice, error) {
	inv, err := s.repo.FindByAccountAndID(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPaymentPending {
		return nil, fmt.Errorf("no pending payment claim: %w", shared.ErrValidation)
	}

	inv.ResolveClaim(approve)
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.evict(ctx, accountID)
	s.notifier.PaymentResolved(ctx, inv, approve)
	return inv, nil
}

func (s *Service) attachItems(ctx context.Context, accountID uuid.UUID, inv *Invoice, items []ItemInput) error {
	for _, item := range items {
		p, err := s.products.FindByAccountAndID(ctx, accountID, item.ProductID)
		if err != nil {
			return err
		}
		inv.AddItem(Item{
			ProductID:          p.ID,
			ProductName:        p.Name,
			ProductDescription: p.Description,
			Quantity:           item.Quantity,
			UnitPrice:          p.Price,
		})
	}
	return nil
}

func (s *Service) evict(ctx context.Context, accountID uuid.UUID) {
	if err := s.cache.Evict(ctx, accountID); err != nil {
		s.logger.Warn("evict invoice cache", slog.Any("error", err))
	}
}
