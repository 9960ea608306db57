package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/account"
	"github.com/invoiceapp/invoiceapp/internal/client"
	"github.com/invoiceapp/invoiceapp/internal/shared"
	"github.com/invoiceapp/invoiceapp/internal/token"
)

// TokenVerifier resolves a public action token to the invoice it is bound to.
// The core never re-derives identity from the token itself.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenStr string, action token.Action) (uuid.UUID, error)
}

// AccountDirectory resolves account holders for the public invoice view.
type AccountDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

// ClientGetter resolves clients without ownership scoping; the token already
// proves the relationship.
type ClientGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*client.Client, error)
}

// PublicItem is a line item as exposed to the invoiced party.
type PublicItem struct {
	ProductName        string  `json:"productName"`
	ProductDescription string  `json:"productDescription,omitempty"`
	Quantity           int     `json:"quantity"`
	UnitPrice          float64 `json:"unitPrice"`
	Total              float64 `json:"total"`
}

// PublicView is the read-only projection served to a VIEW token holder.
type PublicView struct {
	Number    string    `json:"number"`
	IssueDate time.Time `json:"issueDate"`
	DueDate   time.Time `json:"dueDate"`
	Status    Status    `json:"status"`

	CompanyName    string `json:"companyName"`
	CompanyEmail   string `json:"companyEmail"`
	CompanyPhone   string `json:"companyPhone,omitempty"`
	CompanyAddress string `json:"companyAddress,omitempty"`
	CompanyLogoURL string `json:"companyLogoUrl,omitempty"`

	ClientName    string `json:"clientName"`
	ClientEmail   string `json:"clientEmail"`
	ClientPhone   string `json:"clientPhone,omitempty"`
	ClientAddress string `json:"clientAddress,omitempty"`

	Items     []PublicItem `json:"items"`
	Subtotal  float64      `json:"subtotal"`
	TaxRate   float64      `json:"taxRate"`
	TaxAmount float64      `json:"taxAmount"`
	Total     float64      `json:"total"`
	Notes     string       `json:"notes,omitempty"`
}

// PublicService handles the token-authenticated actions an invoiced client
// can perform without an account session.
type PublicService struct {
	repo     RepositoryPort
	tokens   TokenVerifier
	accounts AccountDirectory
	clients  ClientGetter
	notifier Notifier
	cache    *Cache
	logger   *slog.Logger
}

// NewPublicService builds a PublicService instance.
func NewPublicService(repo RepositoryPort, tokens TokenVerifier, accounts AccountDirectory, clients ClientGetter, notifier Notifier, cache *Cache, logger *slog.Logger) *PublicService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicService{
		repo:     repo,
		tokens:   tokens,
		accounts: accounts,
		clients:  clients,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}
}

// View renders the invoice for a VIEW token holder.
func (s *PublicService) View(ctx context.Context, tokenStr string) (*PublicView, error) {
	invoiceID, err := s.tokens.Verify(ctx, tokenStr, token.ActionView)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, inv)
}

// ViewByID renders the same projection for the owning account holder, used
// for document rendering on the authenticated surface.
func (s *PublicService) ViewByID(ctx context.Context, accountID, invoiceID uuid.UUID) (*PublicView, error) {
	inv, err := s.repo.FindByAccountAndID(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, inv)
}

func (s *PublicService) project(ctx context.Context, inv *Invoice) (*PublicView, error) {
	owner, err := s.accounts.Get(ctx, inv.AccountID)
	if err != nil {
		return nil, err
	}
	cl, err := s.clients.Get(ctx, inv.ClientID)
	if err != nil {
		return nil, err
	}

	view := &PublicView{
		Number:         inv.Number,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Status:         inv.Status,
		CompanyName:    owner.CompanyName,
		CompanyEmail:   owner.Email,
		CompanyPhone:   owner.Phone,
		CompanyAddress: owner.Address,
		CompanyLogoURL: owner.LogoURL,
		ClientName:     cl.Name,
		ClientEmail:    cl.Email,
		ClientPhone:    cl.Phone,
		ClientAddress:  cl.Address,
		Subtotal:       inv.Subtotal,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		Total:          inv.Total,
		Notes:          inv.Notes,
	}
	for _, item := range inv.Items {
		view.Items = append(view.Items, PublicItem{
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			Total:              item.Total,
		})
	}
	return view, nil
}

// RequestCancellation moves a non-settled invoice to CANCELLATION_REQUESTED
// and alerts the account holder for manual approval.
func (s *PublicService) RequestCancellation(ctx context.Context, tokenStr string) error {
	return s.claim(ctx, tokenStr, token.ActionCancel, StatusCancellationRequested,
		func(inv *Invoice) { s.notifier.CancellationRequested(ctx, inv) })
}

// ClaimPayment moves a non-settled invoice to PAYMENT_PENDING and alerts the
// account holder for manual verification.
func (s *PublicService) ClaimPayment(ctx context.Context, tokenStr string) error {
	return s.claim(ctx, tokenStr, token.ActionPay, StatusPaymentPending,
		func(inv *Invoice) { s.notifier.PaymentClaimed(ctx, inv) })
}

func (s *PublicService) claim(ctx context.Context, tokenStr string, action token.Action, target Status, notify func(*Invoice)) error {
	invoiceID, err := s.tokens.Verify(ctx, tokenStr, action)
	if err != nil {
		return err
	}

	inv, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if !CanClaim(inv.Status) {
		return fmt.Errorf("invoice %s: %w", inv.Number, shared.ErrAlreadySettled)
	}

	inv.EnterClaim(target)
	if err := s.repo.Update(ctx, inv); err != nil {
		return err
	}

	if err := s.cache.Evict(ctx, inv.AccountID); err != nil {
		s.logger.Warn("evict invoice cache", slog.Any("error", err))
	}
	notify(inv)

	s.logger.Info("public claim applied",
		slog.String("number", inv.Number),
		slog.String("status", string(target)))
	return nil
}
