package invoice

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status enumerates invoice lifecycle states.
type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusSent                  Status = "SENT"
	StatusDue                   Status = "DUE"
	StatusOverdue               Status = "OVERDUE"
	StatusPaid                  Status = "PAID"
	StatusCancelled             Status = "CANCELLED"
	StatusCancellationRequested Status = "CANCELLATION_REQUESTED"
	StatusPaymentPending        Status = "PAYMENT_PENDING"
)

// Settled reports whether the invoice is in a terminal state that rejects
// further public claim actions.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusDue, StatusOverdue,
		StatusPaid, StatusCancelled, StatusCancellationRequested, StatusPaymentPending:
		return true
	}
	return false
}

// Frequency enumerates recurring billing cadences. Each case carries its own
// date-advance rule dispatched by tag in Advance.
type Frequency string

const (
	FreqDaily     Frequency = "DAILY"
	FreqWeekly    Frequency = "WEEKLY"
	FreqBiweekly  Frequency = "BIWEEKLY"
	FreqMonthly   Frequency = "MONTHLY"
	FreqQuarterly Frequency = "QUARTERLY"
	FreqYearly    Frequency = "YEARLY"
)

// Advance returns the next generation date after from.
func (f Frequency) Advance(from time.Time) time.Time {
	switch f {
	case FreqDaily:
		return from.AddDate(0, 0, 1)
	case FreqWeekly:
		return from.AddDate(0, 0, 7)
	case FreqBiweekly:
		return from.AddDate(0, 0, 14)
	case FreqMonthly:
		return from.AddDate(0, 1, 0)
	case FreqQuarterly:
		return from.AddDate(0, 3, 0)
	case FreqYearly:
		return from.AddDate(1, 0, 0)
	}
	return from
}

// ParseFrequency normalises a frequency string, returning "" when unknown.
func ParseFrequency(s string) Frequency {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly, FreqQuarterly, FreqYearly:
		return f
	}
	return ""
}

// Item is a line item owned by exactly one invoice. Product name, description
// and unit price are snapshotted at invoice-creation time so later product
// edits never change an issued invoice.
type Item struct {
	ID                 uuid.UUID
	InvoiceID          uuid.UUID
	ProductID          uuid.UUID
	ProductName        string
	ProductDescription string
	Quantity           int
	UnitPrice          float64
	Total              float64
}

// Invoice model.
type Invoice struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	ClientID  uuid.UUID
	Number    string
	IssueDate time.Time
	DueDate   time.Time
	Status    Status
	// PreviousStatus records the state an invoice left when a public claim
	// moved it into CANCELLATION_REQUESTED or PAYMENT_PENDING, so a rejected
	// claim can restore it.
	PreviousStatus *Status
	Items          []Item
	Subtotal       float64
	TaxRate        float64
	TaxAmount      float64
	Total          float64
	Notes          string

	IsRecurring        bool
	Frequency          Frequency
	NextGenerationDate *time.Time
	SeriesID           *uuid.UUID

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddItem appends a line item and recomputes its total.
func (inv *Invoice) AddItem(item Item) {
	item.Total = round2(item.UnitPrice * float64(item.Quantity))
	inv.Items = append(inv.Items, item)
}

// CalculateTotals recomputes every line total, the subtotal, the tax amount
// and the grand total. This is the single place the arithmetic invariants are
// enforced; it runs identically for user updates and recurring generation.
func (inv *Invoice) CalculateTotals() {
	var subtotal float64
	for i := range inv.Items {
		inv.Items[i].Total = round2(inv.Items[i].UnitPrice * float64(inv.Items[i].Quantity))
		subtotal += inv.Items[i].Total
	}
	inv.Subtotal = round2(subtotal)
	inv.TaxAmount = round2(inv.Subtotal * inv.TaxRate / 100)
	inv.Total = round2(inv.Subtotal + inv.TaxAmount)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
