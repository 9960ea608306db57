package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/account"
	"github.com/invoiceapp/invoiceapp/internal/client"
	"github.com/invoiceapp/invoiceapp/internal/invoice"
	"github.com/invoiceapp/invoiceapp/internal/shared"
	"github.com/invoiceapp/invoiceapp/internal/token"
	"github.com/invoiceapp/invoiceapp/jobs"
)

type captureQueue struct {
	sent []jobs.SendEmailPayload
	fail bool
}

func (q *captureQueue) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if q.fail {
		return nil, errors.New("queue unavailable")
	}
	q.sent = append(q.sent, payload)
	return &asynq.TaskInfo{}, nil
}

type staticMinter struct{}

func (staticMinter) Mint(ctx context.Context, invoiceID uuid.UUID, action token.Action) (string, error) {
	return "tok-" + strings.ToLower(string(action)), nil
}

type staticAccounts struct{ acc *account.Account }

func (s staticAccounts) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if s.acc == nil {
		return nil, shared.ErrNotFound
	}
	return s.acc, nil
}

type staticClients struct{ cl *client.Client }

func (s staticClients) Get(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	if s.cl == nil {
		return nil, shared.ErrNotFound
	}
	return s.cl, nil
}

func testInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		ClientID:  uuid.New(),
		Number:    "U0001-2026-0001",
		IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:    invoice.StatusSent,
		Total:     1234.5,
	}
}

func newTestNotifier(queue *captureQueue) *EmailNotifier {
	return NewEmailNotifier(queue, staticMinter{},
		staticAccounts{acc: &account.Account{CompanyName: "Initech", Email: "owner@initech.test"}},
		staticClients{cl: &client.Client{Name: "Acme Ltd", Email: "billing@acme.test"}},
		"https://pay.initech.test", nil)
}

func TestInvoiceCreatedEmailsClientWithLinks(t *testing.T) {
	queue := &captureQueue{}
	n := newTestNotifier(queue)

	n.InvoiceCreated(context.Background(), testInvoice())

	require.Len(t, queue.sent, 1)
	mail := queue.sent[0]
	require.Equal(t, "billing@acme.test", mail.To)
	require.Contains(t, mail.Subject, "U0001-2026-0001")
	require.Contains(t, mail.Body, "$1,234.50")
	require.Contains(t, mail.Body, "https://pay.initech.test/public/view/tok-view")
	require.Contains(t, mail.Body, "https://pay.initech.test/public/pay/tok-pay")
	require.Contains(t, mail.Body, "https://pay.initech.test/public/cancel/tok-cancel")
}

func TestPaymentClaimedEmailsAccountHolder(t *testing.T) {
	queue := &captureQueue{}
	n := newTestNotifier(queue)

	n.PaymentClaimed(context.Background(), testInvoice())

	require.Len(t, queue.sent, 1)
	require.Equal(t, "owner@initech.test", queue.sent[0].To)
	require.Contains(t, queue.sent[0].Body, "Acme Ltd")
}

func TestRecurringStoppedEmailsBothParties(t *testing.T) {
	queue := &captureQueue{}
	n := newTestNotifier(queue)

	n.RecurringStopped(context.Background(), testInvoice())

	require.Len(t, queue.sent, 2)
	recipients := []string{queue.sent[0].To, queue.sent[1].To}
	require.Contains(t, recipients, "billing@acme.test")
	require.Contains(t, recipients, "owner@initech.test")
}

func TestPaymentResolvedRejected(t *testing.T) {
	queue := &captureQueue{}
	n := newTestNotifier(queue)

	n.PaymentResolved(context.Background(), testInvoice(), false)

	require.Len(t, queue.sent, 1)
	require.Contains(t, queue.sent[0].Subject, "not confirmed")
}

func TestEnqueueFailureIsSwallowed(t *testing.T) {
	queue := &captureQueue{fail: true}
	n := newTestNotifier(queue)

	// Must not panic or propagate.
	n.InvoiceCreated(context.Background(), testInvoice())
	require.Empty(t, queue.sent)
}

func TestMissingClientSkipsEmail(t *testing.T) {
	queue := &captureQueue{}
	n := NewEmailNotifier(queue, staticMinter{},
		staticAccounts{acc: &account.Account{CompanyName: "Initech", Email: "owner@initech.test"}},
		staticClients{}, "https://pay.initech.test", nil)

	n.InvoiceCreated(context.Background(), testInvoice())
	require.Empty(t, queue.sent)
}
