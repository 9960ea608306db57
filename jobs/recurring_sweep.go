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

// RecurringSweepJob drives the recurring invoice engine on schedule.
type RecurringSweepJob struct {
	Engine  *invoice.RecurringEngine
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRecurringSweepJob initialises the recurring sweep handler.
func NewRecurringSweepJob(engine *invoice.RecurringEngine, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecurringSweepJob {
	return &RecurringSweepJob{Engine: engine, Logger: logger, Metrics: metrics}
}

// Handle executes one recurring sweep.
func (j *RecurringSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("recurring sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskTypeRecurringSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting recurring sweep")
	start := time.Now()

	report, err := j.Engine.Run(ctx)
	if err != nil {
		resultErr = err
		logger.Error("recurring sweep failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddOutcome(TaskTypeRecurringSweep, "generated", report.Generated)
	j.metrics().AddOutcome(TaskTypeRecurringSweep, "warned", report.Warned)
	j.metrics().AddOutcome(TaskTypeRecurringSweep, "stopped", report.Stopped)

	logger.Info("completed recurring sweep",
		slog.Int("generated", report.Generated),
		slog.Int("warned", report.Warned),
		slog.Int("stopped", report.Stopped),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *RecurringSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeRecurringSweep))
	}
	return slog.Default().With(slog.String("job", TaskTypeRecurringSweep))
}

func (j *RecurringSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
