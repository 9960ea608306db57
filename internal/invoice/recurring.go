package invoice

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RecurringReport summarises one recurring sweep run.
type RecurringReport struct {
	Generated int
	Warned    int
	Stopped   int
}

// RecurringEngine advances recurring invoice series. Each run walks every
// active series whose next generation date has arrived and applies the
// payment-gated cascade: a paid origin spawns the next invoice, an unpaid one
// gets a single grace day with a warning, and a series still unpaid after the
// grace day is stopped.
type RecurringEngine struct {
	repo     RepositoryPort
	numbers  NumberAllocator
	notifier Notifier
	cache    *Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecurringEngine builds a RecurringEngine.
func NewRecurringEngine(repo RepositoryPort, numbers NumberAllocator, notifier Notifier, cache *Cache, logger *slog.Logger) *RecurringEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringEngine{
		repo:     repo,
		numbers:  numbers,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Run processes every due recurring invoice once. Per-invoice failures are
// logged and skipped so one broken series never blocks the rest of the sweep.
func (e *RecurringEngine) Run(ctx context.Context) (RecurringReport, error) {
	var report RecurringReport

	today := dateOf(e.now())
	due, err := e.repo.FindRecurringDueOnOrBefore(ctx, today)
	if err != nil {
		return report, err
	}

	for i := range due {
		inv := &due[i]
		if inv.NextGenerationDate == nil {
			continue
		}
		scheduled := dateOf(*inv.NextGenerationDate)

		switch {
		case inv.Status == StatusPaid:
			if err := e.generate(ctx, inv, scheduled); err != nil {
				e.logger.Error("generate recurring invoice",
					slog.String("number", inv.Number),
					slog.Any("error", err))
				continue
			}
			report.Generated++
		case scheduled.Equal(today):
			e.notifier.RecurringWarning(ctx, inv)
			e.logger.Info("recurring invoice unpaid, warned",
				slog.String("number", inv.Number))
			report.Warned++
		default:
			if err := e.stop(ctx, inv); err != nil {
				e.logger.Error("stop recurring series",
					slog.String("number", inv.Number),
					slog.Any("error", err))
				continue
			}
			report.Stopped++
		}
	}

	if report.Generated > 0 || report.Stopped > 0 {
		if err := e.cache.Clear(ctx); err != nil {
			e.logger.Warn("clear invoice cache", slog.Any("error", err))
		}
	}

	e.logger.Info("recurring sweep finished",
		slog.Int("generated", report.Generated),
		slog.Int("warned", report.Warned),
		slog.Int("stopped", report.Stopped))
	return report, nil
}

// generate spawns the next invoice in the series from a paid origin. The new
// invoice is issued on the scheduled date, not the sweep date, so a late sweep
// never shifts the billing cadence.
func (e *RecurringEngine) generate(ctx context.Context, origin *Invoice, scheduled time.Time) error {
	number, err := e.numbers.Allocate(ctx, origin.AccountID)
	if err != nil {
		return err
	}

	seriesID := origin.ID
	if origin.SeriesID != nil {
		seriesID = *origin.SeriesID
	}

	paymentWindow := int(origin.DueDate.Sub(origin.IssueDate).Hours() / 24)
	next := origin.Frequency.Advance(scheduled)

	clone := &Invoice{
		ID:                 uuid.New(),
		AccountID:          origin.AccountID,
		ClientID:           origin.ClientID,
		Number:             number,
		IssueDate:          scheduled,
		DueDate:            scheduled.AddDate(0, 0, paymentWindow),
		Status:             StatusSent,
		TaxRate:            origin.TaxRate,
		Notes:              origin.Notes,
		IsRecurring:        true,
		Frequency:          origin.Frequency,
		NextGenerationDate: &next,
		SeriesID:           &seriesID,
	}
	for _, item := range origin.Items {
		clone.AddItem(Item{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
		})
	}
	clone.CalculateTotals()

	// The clone carries the series forward and the origin is done recurring;
	// both rows move in one transaction.
	if err := e.repo.CreateSuccessor(ctx, clone, origin); err != nil {
		return err
	}
	origin.IsRecurring = false
	origin.NextGenerationDate = nil

	e.notifier.InvoiceCreated(ctx, clone)
	e.logger.Info("recurring invoice generated",
		slog.String("origin", origin.Number),
		slog.String("number", clone.Number))
	return nil
}

func (e *RecurringEngine) stop(ctx context.Context, inv *Invoice) error {
	inv.IsRecurring = false
	inv.NextGenerationDate = nil
	if err := e.repo.Update(ctx, inv); err != nil {
		return err
	}
	e.notifier.RecurringStopped(ctx, inv)
	e.logger.Info("recurring series stopped, unpaid past grace day",
		slog.String("number", inv.Number))
	return nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
