package invoice

import "time"

// The state machine distinguishes three transition sources: explicit account
// holder updates, token-authenticated public claims, and the time-driven
// sweeps. Explicit updates may set any valid status (a manual override out of
// PAID/CANCELLED is allowed); claims and sweeps are guarded here.

// CanClaim reports whether a public claim action (cancellation request or
// payment claim) may be applied. Settled invoices reject all claims.
func CanClaim(current Status) bool {
	return !current.Settled()
}

// EnterClaim moves the invoice into a claim state, recording the state it
// left so a rejected claim can restore it.
func (inv *Invoice) EnterClaim(target Status) {
	prev := inv.Status
	inv.PreviousStatus = &prev
	inv.Status = target
}

// ResolveClaim leaves a claim state. Approved cancellation requests become
// CANCELLED (stopping any recurring series); approved payment claims become
// PAID. A rejected claim restores the recorded prior status, falling back to
// SENT when none was recorded.
func (inv *Invoice) ResolveClaim(approved bool) {
	if approved {
		switch inv.Status {
		case StatusCancellationRequested:
			inv.Status = StatusCancelled
			inv.IsRecurring = false
		case StatusPaymentPending:
			inv.Status = StatusPaid
		}
	} else {
		restored := StatusSent
		if inv.PreviousStatus != nil {
			restored = *inv.PreviousStatus
		}
		inv.Status = restored
	}
	inv.PreviousStatus = nil
}

// SweepStatus classifies an invoice for the due-status sweep by comparing its
// due date against today. It returns the current status unchanged when no
// reclassification applies. Only SENT and DUE invoices are ever swept.
func SweepStatus(current Status, dueDate, today time.Time) Status {
	switch current {
	case StatusSent:
		if dueDate.Before(today) {
			return StatusOverdue
		}
		if sameDay(dueDate, today) {
			return StatusDue
		}
	case StatusDue:
		if dueDate.Before(today) {
			return StatusOverdue
		}
	}
	return current
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
