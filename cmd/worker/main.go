package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoiceapp/invoiceapp/internal/account"
	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/client"
	"github.com/invoiceapp/invoiceapp/internal/counter"
	"github.com/invoiceapp/invoiceapp/internal/invoice"
	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
	"github.com/invoiceapp/invoiceapp/internal/notify"
	"github.com/invoiceapp/invoiceapp/internal/numbering"
	"github.com/invoiceapp/invoiceapp/internal/platform/cache"
	"github.com/invoiceapp/invoiceapp/internal/platform/db"
	"github.com/invoiceapp/invoiceapp/internal/token"
	"github.com/invoiceapp/invoiceapp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	accountRepo := account.NewRepository(dbpool)
	clientRepo := client.NewRepository(dbpool)
	invoiceRepo := invoice.NewRepository(dbpool)

	counterStore := counter.New(redisClient)
	allocator := numbering.NewAllocator(counterStore, logger, time.Now)
	tokenService := token.NewService([]byte(cfg.TokenSecret), redisClient, cfg.PublicTokenTTL)
	invoiceCache := invoice.NewCache(redisClient, cfg.InvoiceCacheTTL)

	notifier := notify.NewEmailNotifier(queue, tokenService, accountRepo, clientRepo, cfg.FrontendURL, logger)

	metrics := jobmetrics.NewMetrics(nil)

	recurringEngine := invoice.NewRecurringEngine(invoiceRepo, allocator, notifier, invoiceCache, logger)
	recurringJob := jobs.NewRecurringSweepJob(recurringEngine, logger, metrics)

	dueSweeper := invoice.NewDueSweeper(invoiceRepo, notifier, invoiceCache, logger)
	dueJob := jobs.NewDueStatusSweepJob(dueSweeper, logger, metrics)

	var smtpAuth smtp.Auth
	if cfg.SMTPUsername != "" {
		smtpAuth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	mailer := jobs.NewMailer(
		fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		cfg.SMTPFrom, smtpAuth, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailer.Handle},
			{Type: jobs.TaskTypeRecurringSweep, Handler: recurringJob.Handle},
			{Type: jobs.TaskTypeDueStatusSweep, Handler: dueJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RecurringSweepSpec, Task: jobs.NewRecurringSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.DueStatusSweepSpec, Task: jobs.NewDueStatusSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
