package invoice

import "context"

// Notifier delivers invoice lifecycle notifications. Calls are
// fire-and-forget: implementations log failures and never return them, so a
// broken transport can never abort a state transition.
type Notifier interface {
	// InvoiceCreated announces a freshly sent invoice to the client with
	// view/pay/cancel action links.
	InvoiceCreated(ctx context.Context, inv *Invoice)
	// PaymentConfirmed tells the client their payment was confirmed.
	PaymentConfirmed(ctx context.Context, inv *Invoice)
	// CancellationRequested alerts the account holder to a client's
	// cancellation request awaiting manual approval.
	CancellationRequested(ctx context.Context, inv *Invoice)
	// PaymentClaimed alerts the account holder to a client's payment claim
	// awaiting manual verification.
	PaymentClaimed(ctx context.Context, inv *Invoice)
	// DueReminder nudges the client on the due date.
	DueReminder(ctx context.Context, inv *Invoice)
	// OverdueReminder nudges the client past the due date.
	OverdueReminder(ctx context.Context, inv *Invoice)
	// RecurringWarning warns both parties that the series will stop unless the
	// invoice is paid within the grace period.
	RecurringWarning(ctx context.Context, inv *Invoice)
	// RecurringStopped tells both parties the series was terminated.
	RecurringStopped(ctx context.Context, inv *Invoice)
	// CancellationResolved reports the account holder's decision on a
	// cancellation request back to the client.
	CancellationResolved(ctx context.Context, inv *Invoice, approved bool)
	// PaymentResolved reports the account holder's decision on a payment
	// claim back to the client.
	PaymentResolved(ctx context.Context, inv *Invoice, approved bool)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) InvoiceCreated(context.Context, *Invoice)             {}
func (NopNotifier) PaymentConfirmed(context.Context, *Invoice)           {}
func (NopNotifier) CancellationRequested(context.Context, *Invoice)      {}
func (NopNotifier) PaymentClaimed(context.Context, *Invoice)             {}
func (NopNotifier) DueReminder(context.Context, *Invoice)                {}
func (NopNotifier) OverdueReminder(context.Context, *Invoice)            {}
func (NopNotifier) RecurringWarning(context.Context, *Invoice)           {}
func (NopNotifier) RecurringStopped(context.Context, *Invoice)           {}
func (NopNotifier) CancellationResolved(context.Context, *Invoice, bool) {}
func (NopNotifier) PaymentResolved(context.Context, *Invoice, bool)      {}
