package invoice

import (
	"context"
	"log/slog"
	"time"
)

// DueReport summarises one due-status sweep run.
type DueReport struct {
	Due     int
	Overdue int
}

// DueSweeper reclassifies open invoices against the calendar: SENT invoices
// reaching their due date become DUE, and anything past it becomes OVERDUE.
// The sweep never touches settled or claim-state invoices.
type DueSweeper struct {
	repo     RepositoryPort
	notifier Notifier
	cache    *Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewDueSweeper builds a DueSweeper.
func NewDueSweeper(repo RepositoryPort, notifier Notifier, cache *Cache, logger *slog.Logger) *DueSweeper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DueSweeper{
		repo:     repo,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Run reclassifies every SENT and DUE invoice once and persists the changes
// in a single batch.
func (s *DueSweeper) Run(ctx context.Context) (DueReport, error) {
	var report DueReport

	today := dateOf(s.now())
	var changes []StatusChange

	for _, status := range []Status{StatusSent, StatusDue} {
		invoices, err := s.repo.FindByStatus(ctx, status)
		if err != nil {
			return report, err
		}
		for i := range invoices {
			inv := &invoices[i]
			next := SweepStatus(inv.Status, inv.DueDate, today)
			if next == inv.Status {
				continue
			}
			changes = append(changes, StatusChange{ID: inv.ID, Status: next})
			switch next {
			case StatusDue:
				s.notifier.DueReminder(ctx, inv)
				report.Due++
			case StatusOverdue:
				s.notifier.OverdueReminder(ctx, inv)
				report.Overdue++
			}
		}
	}

	if len(changes) == 0 {
		return report, nil
	}
	if err := s.repo.UpdateStatuses(ctx, changes); err != nil {
		return report, err
	}

	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("clear invoice cache", slog.Any("error", err))
	}

	s.logger.Info("due-status sweep finished",
		slog.Int("due", report.Due),
		slog.Int("overdue", report.Overdue))
	return report, nil
}
