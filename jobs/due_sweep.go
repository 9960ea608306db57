package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoiceapp/invoiceapp/internal/invoice"
	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

// DueStatusSweepJob drives the due-status sweeper on schedule.
type DueStatusSweepJob struct {
	Sweeper *invoice.DueSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDueStatusSweepJob initialises the due-status sweep handler.
func NewDueStatusSweepJob(sweeper *invoice.DueSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *DueStatusSweepJob {
	return &DueStatusSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes one due-status sweep.
func (j *DueStatusSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("due-status sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskTypeDueStatusSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting due-status sweep")
	start := time.Now()

	report, err := j.Sweeper.Run(ctx)
	if err != nil {
		resultErr = err
		logger.Error("due-status sweep failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddOutcome(TaskTypeDueStatusSweep, "due", report.Due)
	j.metrics().AddOutcome(TaskTypeDueStatusSweep, "overdue", report.Overdue)

	logger.Info("completed due-status sweep",
		slog.Int("due", report.Due),
		slog.Int("overdue", report.Overdue),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *DueStatusSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeDueStatusSweep))
	}
	return slog.Default().With(slog.String("job", TaskTypeDueStatusSweep))
}

func (j *DueStatusSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
