// Package notify turns invoice lifecycle events into queued transactional
// emails. Delivery is asynchronous: every method composes the message, hands
// it to the job queue and swallows failures after logging them, so a broken
// queue never aborts the state transition that triggered the notification.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/invoiceapp/invoiceapp/internal/account"
	"github.com/invoiceapp/invoiceapp/internal/client"
	"github.com/invoiceapp/invoiceapp/internal/invoice"
	"github.com/invoiceapp/invoiceapp/internal/token"
	"github.com/invoiceapp/invoiceapp/jobs"
)

// Enqueuer submits prepared emails to the background queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// TokenMinter issues public action tokens embedded in email links.
type TokenMinter interface {
	Mint(ctx context.Context, invoiceID uuid.UUID, action token.Action) (string, error)
}

// AccountDirectory resolves the account holder behind an invoice.
type AccountDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

// ClientDirectory resolves the invoiced party.
type ClientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*client.Client, error)
}

// EmailNotifier implements invoice.Notifier over the email job queue.
type EmailNotifier struct {
	queue       Enqueuer
	tokens      TokenMinter
	accounts    AccountDirectory
	clients     ClientDirectory
	frontendURL string
	logger      *slog.Logger
	printer     *message.Printer
}

var _ invoice.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier builds an EmailNotifier.
func NewEmailNotifier(queue Enqueuer, tokens TokenMinter, accounts AccountDirectory, clients ClientDirectory, frontendURL string, logger *slog.Logger) *EmailNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{
		queue:       queue,
		tokens:      tokens,
		accounts:    accounts,
		clients:     clients,
		frontendURL: frontendURL,
		logger:      logger,
		printer:     message.NewPrinter(language.English),
	}
}

// InvoiceCreated mails the client a freshly sent invoice with action links.
func (n *EmailNotifier) InvoiceCreated(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	links := n.actionLinks(ctx, inv)
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Invoice %s from %s", inv.Number, owner.CompanyName),
		fmt.Sprintf("Hello %s,\n\n%s has sent you invoice %s for %s, due on %s.\n\n%s\nThe %s team",
			cl.Name, owner.CompanyName, inv.Number, n.amount(inv.Total),
			inv.DueDate.Format("2 January 2006"), links, owner.CompanyName))
}

// PaymentConfirmed tells the client their payment went through.
func (n *EmailNotifier) PaymentConfirmed(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Payment confirmed for invoice %s", inv.Number),
		fmt.Sprintf("Hello %s,\n\nYour payment of %s for invoice %s has been confirmed.\n\nThank you,\n%s",
			cl.Name, n.amount(inv.Total), inv.Number, owner.CompanyName))
}

// CancellationRequested alerts the account holder to a pending request.
func (n *EmailNotifier) CancellationRequested(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	n.enqueue(ctx, owner.Email,
		fmt.Sprintf("Cancellation requested for invoice %s", inv.Number),
		fmt.Sprintf("%s has requested cancellation of invoice %s (%s).\n\nReview the request in your dashboard:\n%s/invoices/%s",
			cl.Name, inv.Number, n.amount(inv.Total), n.frontendURL, inv.ID))
}

// PaymentClaimed alerts the account holder to a pending payment claim.
func (n *EmailNotifier) PaymentClaimed(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	n.enqueue(ctx, owner.Email,
		fmt.Sprintf("Payment claimed for invoice %s", inv.Number),
		fmt.Sprintf("%s reports having paid invoice %s (%s).\n\nVerify and confirm in your dashboard:\n%s/invoices/%s",
			cl.Name, inv.Number, n.amount(inv.Total), n.frontendURL, inv.ID))
}

// DueReminder nudges the client on the due date.
func (n *EmailNotifier) DueReminder(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	links := n.actionLinks(ctx, inv)
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Invoice %s is due today", inv.Number),
		fmt.Sprintf("Hello %s,\n\nInvoice %s from %s for %s is due today.\n\n%s\nThe %s team",
			cl.Name, inv.Number, owner.CompanyName, n.amount(inv.Total), links, owner.CompanyName))
}

// OverdueReminder nudges the client past the due date.
func (n *EmailNotifier) OverdueReminder(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	links := n.actionLinks(ctx, inv)
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Invoice %s is overdue", inv.Number),
		fmt.Sprintf("Hello %s,\n\nInvoice %s from %s for %s was due on %s and is now overdue.\n\n%s\nThe %s team",
			cl.Name, inv.Number, owner.CompanyName, n.amount(inv.Total),
			inv.DueDate.Format("2 January 2006"), links, owner.CompanyName))
}

// RecurringWarning warns both parties that the series stops unless the
// invoice is paid today.
func (n *EmailNotifier) RecurringWarning(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Recurring invoice %s needs payment", inv.Number),
		fmt.Sprintf("Hello %s,\n\nRecurring invoice %s from %s (%s) is unpaid. The series will stop unless payment is received today.\n\nThe %s team",
			cl.Name, inv.Number, owner.CompanyName, n.amount(inv.Total), owner.CompanyName))
	n.enqueue(ctx, owner.Email,
		fmt.Sprintf("Recurring invoice %s unpaid", inv.Number),
		fmt.Sprintf("Recurring invoice %s for %s (%s) is unpaid at its scheduled generation date. The series will stop tomorrow unless it is paid.",
			inv.Number, cl.Name, n.amount(inv.Total)))
}

// RecurringStopped tells both parties the series was terminated.
func (n *EmailNotifier) RecurringStopped(ctx context.Context, inv *invoice.Invoice) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Recurring billing stopped for invoice %s", inv.Number),
		fmt.Sprintf("Hello %s,\n\nRecurring billing from %s tied to invoice %s has been stopped because the invoice remained unpaid.\n\nThe %s team",
			cl.Name, owner.CompanyName, inv.Number, owner.CompanyName))
	n.enqueue(ctx, owner.Email,
		fmt.Sprintf("Recurring series stopped for invoice %s", inv.Number),
		fmt.Sprintf("The recurring series for invoice %s (%s, %s) was stopped: the invoice stayed unpaid past its scheduled generation date.",
			inv.Number, cl.Name, n.amount(inv.Total)))
}

// CancellationResolved reports the decision on a cancellation request.
func (n *EmailNotifier) CancellationResolved(ctx context.Context, inv *invoice.Invoice, approved bool) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	if approved {
		n.enqueue(ctx, cl.Email,
			fmt.Sprintf("Invoice %s cancelled", inv.Number),
			fmt.Sprintf("Hello %s,\n\nYour cancellation request for invoice %s was approved. The invoice is now cancelled.\n\nThe %s team",
				cl.Name, inv.Number, owner.CompanyName))
		return
	}
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Cancellation declined for invoice %s", inv.Number),
		fmt.Sprintf("Hello %s,\n\nYour cancellation request for invoice %s was declined. The invoice remains payable (%s).\n\nThe %s team",
			cl.Name, inv.Number, n.amount(inv.Total), owner.CompanyName))
}

// PaymentResolved reports the decision on a payment claim.
func (n *EmailNotifier) PaymentResolved(ctx context.Context, inv *invoice.Invoice, approved bool) {
	owner, cl, ok := n.parties(ctx, inv)
	if !ok {
		return
	}
	if approved {
		n.PaymentConfirmed(ctx, inv)
		return
	}
	n.enqueue(ctx, cl.Email,
		fmt.Sprintf("Payment not confirmed for invoice %s", inv.Number),
		fmt.Sprintf("Hello %s,\n\nWe could not confirm your payment of %s for invoice %s. The invoice remains open; please check with %s.\n\nThe %s team",
			cl.Name, n.amount(inv.Total), inv.Number, owner.CompanyName, owner.CompanyName))
}

func (n *EmailNotifier) parties(ctx context.Context, inv *invoice.Invoice) (*account.Account, *client.Client, bool) {
	owner, err := n.accounts.Get(ctx, inv.AccountID)
	if err != nil {
		n.logger.Error("resolve account for notification",
			slog.String("number", inv.Number), slog.Any("error", err))
		return nil, nil, false
	}
	cl, err := n.clients.Get(ctx, inv.ClientID)
	if err != nil {
		n.logger.Error("resolve client for notification",
			slog.String("number", inv.Number), slog.Any("error", err))
		return nil, nil, false
	}
	return owner, cl, true
}

// actionLinks mints fresh view/pay/cancel tokens for the client email. A
// minting failure drops that one link rather than the whole email.
func (n *EmailNotifier) actionLinks(ctx context.Context, inv *invoice.Invoice) string {
	var out string
	for _, entry := range []struct {
		action token.Action
		label  string
		path   string
	}{
		{token.ActionView, "View invoice", "view"},
		{token.ActionPay, "Mark as paid", "pay"},
		{token.ActionCancel, "Request cancellation", "cancel"},
	} {
		t, err := n.tokens.Mint(ctx, inv.ID, entry.action)
		if err != nil {
			n.logger.Warn("mint public token",
				slog.String("number", inv.Number),
				slog.String("action", string(entry.action)),
				slog.Any("error", err))
			continue
		}
		out += fmt.Sprintf("%s: %s/public/%s/%s\n", entry.label, n.frontendURL, entry.path, t)
	}
	return out
}

func (n *EmailNotifier) enqueue(ctx context.Context, to, subject, body string) {
	if to == "" {
		return
	}
	if _, err := n.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      to,
		Subject: subject,
		Body:    body,
	}); err != nil {
		n.logger.Error("enqueue notification email",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.Any("error", err))
	}
}

// amount renders a monetary value with digit grouping, e.g. 1,234.50.
func (n *EmailNotifier) amount(v float64) string {
	return n.printer.Sprintf("$%v", number.Decimal(v,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
