package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recurringFixture struct {
	accountID uuid.UUID
	clientID  uuid.UUID
	repo      *memoryRepo
	notifier  *recordingNotifier
	engine    *RecurringEngine
}

func newRecurringFixture(t *testing.T, today time.Time) *recurringFixture {
	t.Helper()
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	engine := NewRecurringEngine(repo, &stubAllocator{next: 1}, notifier, nil, nil)
	engine.now = func() time.Time { return today }
	return &recurringFixture{
		accountID: uuid.New(),
		clientID:  uuid.New(),
		repo:      repo,
		notifier:  notifier,
		engine:    engine,
	}
}

// seedRecurring creates a monthly recurring invoice issued Mar 1 with a
// 14-day payment window, scheduled to generate on nextGen.
func (f *recurringFixture) seedRecurring(status Status, nextGen time.Time) *Invoice {
	inv := &Invoice{
		ID:                 uuid.New(),
		AccountID:          f.accountID,
		ClientID:           f.clientID,
		Number:             "U0001-2026-0001",
		IssueDate:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:            time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:             status,
		TaxRate:            10,
		IsRecurring:        true,
		Frequency:          FreqMonthly,
		NextGenerationDate: &nextGen,
	}
	inv.AddItem(Item{ProductID: uuid.New(), ProductName: "Consulting", Quantity: 2, UnitPrice: 150})
	inv.CalculateTotals()
	f.repo.store(inv)
	return inv
}

func (f *recurringFixture) findClone(originID uuid.UUID) *Invoice {
	for _, inv := range f.repo.invoices {
		if inv.ID != originID {
			return inv
		}
	}
	return nil
}

func TestRecurringSweepGeneratesFromPaidOrigin(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	f := newRecurringFixture(t, today)
	origin := f.seedRecurring(StatusPaid, today)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{Generated: 1}, report)

	clone := f.findClone(origin.ID)
	require.NotNil(t, clone)
	require.NotEqual(t, origin.Number, clone.Number)
	require.Equal(t, StatusSent, clone.Status)
	require.Equal(t, today, clone.IssueDate)
	// The 14-day payment window carries over.
	require.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), clone.DueDate)
	require.Equal(t, origin.Total, clone.Total)
	require.Len(t, clone.Items, 1)

	require.True(t, clone.IsRecurring)
	require.NotNil(t, clone.NextGenerationDate)
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *clone.NextGenerationDate)
	require.NotNil(t, clone.SeriesID)
	require.Equal(t, origin.ID, *clone.SeriesID)

	updatedOrigin := f.repo.invoices[origin.ID]
	require.False(t, updatedOrigin.IsRecurring)
	require.Nil(t, updatedOrigin.NextGenerationDate)

	require.Equal(t, []string{"created:" + clone.Number}, f.notifier.events)
}

func TestRecurringSweepCloneInheritsSeriesID(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	f := newRecurringFixture(t, today)

	seriesID := uuid.New()
	origin := f.seedRecurring(StatusPaid, today)
	f.repo.invoices[origin.ID].SeriesID = &seriesID

	_, err := f.engine.Run(ctx)
	require.NoError(t, err)

	clone := f.findClone(origin.ID)
	require.NotNil(t, clone.SeriesID)
	require.Equal(t, seriesID, *clone.SeriesID)
}

func TestRecurringSweepLateGenerationKeepsScheduledDate(t *testing.T) {
	ctx := context.Background()
	scheduled := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	// The sweep runs two days late but the clone is issued on the
	// scheduled date, keeping the billing cadence intact.
	f := newRecurringFixture(t, scheduled.AddDate(0, 0, 2))
	origin := f.seedRecurring(StatusPaid, scheduled)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Generated)

	clone := f.findClone(origin.ID)
	require.Equal(t, scheduled, clone.IssueDate)
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *clone.NextGenerationDate)
}

func TestRecurringSweepWarnsUnpaidOnGenerationDay(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	f := newRecurringFixture(t, today)
	origin := f.seedRecurring(StatusOverdue, today)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{Warned: 1}, report)

	// Nothing generated, nothing changed: the series gets one grace day.
	require.Len(t, f.repo.invoices, 1)
	stored := f.repo.invoices[origin.ID]
	require.True(t, stored.IsRecurring)
	require.Equal(t, today, *stored.NextGenerationDate)
	require.Equal(t, []string{"warning:" + origin.Number}, f.notifier.events)
}

func TestRecurringSweepStopsUnpaidPastGraceDay(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	f := newRecurringFixture(t, today)
	origin := f.seedRecurring(StatusOverdue, today.AddDate(0, 0, -1))

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{Stopped: 1}, report)

	stored := f.repo.invoices[origin.ID]
	require.False(t, stored.IsRecurring)
	require.Nil(t, stored.NextGenerationDate)
	require.Equal(t, []string{"stopped:" + origin.Number}, f.notifier.events)

	// A second run finds nothing: the series stops exactly once.
	report, err = f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{}, report)
	require.Len(t, f.notifier.events, 1)
}

func TestRecurringSweepPersistFailureNeverDoubleGenerates(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	f := newRecurringFixture(t, today)
	origin := f.seedRecurring(StatusPaid, today)

	// The aborted transaction leaves nothing behind: no clone, and the
	// origin still scheduled.
	f.repo.successorErr = errors.New("tx aborted")
	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{}, report)
	require.Len(t, f.repo.invoices, 1)
	stored := f.repo.invoices[origin.ID]
	require.True(t, stored.IsRecurring)
	require.Equal(t, today, *stored.NextGenerationDate)

	// The next run picks the series up again and generates exactly once.
	report, err = f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{Generated: 1}, report)
	require.Len(t, f.repo.invoices, 2)

	// A third run leaves the ledger alone: one clone, ever, per cycle.
	report, err = f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{}, report)
	require.Len(t, f.repo.invoices, 2)
}

func TestRecurringSweepAllocatorFailureSkipsInvoice(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	f := newRecurringFixture(t, today)
	origin := f.seedRecurring(StatusPaid, today)
	f.engine.numbers = &stubAllocator{fail: true}

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, RecurringReport{}, report)

	// The origin stays eligible for the next run.
	stored := f.repo.invoices[origin.ID]
	require.True(t, stored.IsRecurring)
	require.Len(t, f.repo.invoices, 1)
}
