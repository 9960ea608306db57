package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoiceapp/invoiceapp/cmd/invoiceapp/cli"
	"github.com/invoiceapp/invoiceapp/internal/account"
	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/client"
	"github.com/invoiceapp/invoiceapp/internal/counter"
	"github.com/invoiceapp/invoiceapp/internal/invoice"
	"github.com/invoiceapp/invoiceapp/internal/notify"
	"github.com/invoiceapp/invoiceapp/internal/numbering"
	"github.com/invoiceapp/invoiceapp/internal/observability"
	"github.com/invoiceapp/invoiceapp/internal/platform/cache"
	"github.com/invoiceapp/invoiceapp/internal/platform/db"
	"github.com/invoiceapp/invoiceapp/internal/product"
	"github.com/invoiceapp/invoiceapp/internal/token"
	"github.com/invoiceapp/invoiceapp/jobs"
	"github.com/invoiceapp/invoiceapp/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCLI(os.Args[2:]))
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
	productRepo := product.NewRepository(dbpool)
	invoiceRepo := invoice.NewRepository(dbpool)

	counterStore := counter.New(redisClient)
	allocator := numbering.NewAllocator(counterStore, logger, time.Now)
	tokenService := token.NewService([]byte(cfg.TokenSecret), redisClient, cfg.PublicTokenTTL)
	invoiceCache := invoice.NewCache(redisClient, cfg.InvoiceCacheTTL)

	notifier := notify.NewEmailNotifier(queue, tokenService, accountRepo, clientRepo, cfg.FrontendURL, logger)

	invoiceService := invoice.NewService(invoiceRepo, clientRepo, productRepo, allocator, notifier, invoiceCache, logger)
	publicService := invoice.NewPublicService(invoiceRepo, tokenService, accountRepo, clientRepo, notifier, invoiceCache, logger)

	var renderer invoice.DocumentRenderer
	if cfg.GotenbergURL != "" {
		r, err := report.NewRenderer(report.NewGotenberg(cfg.GotenbergURL), logger)
		if err != nil {
			logger.Error("init pdf renderer", slog.Any("error", err))
			os.Exit(1)
		}
		renderer = r
	}

	invoiceHandler := invoice.NewHandler(logger, invoiceService, publicService, renderer)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		InvoiceHandler: invoiceHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		Authenticator:  app.AccountHeaderAuthenticator,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCLI handles the `invoiceapp jobs ...` operational subcommands.
func runJobsCLI(args []string) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init jobs cli: %v\n", err)
		return 1
	}
	defer func() {
		_ = c.Close()
	}()

	ctx := context.Background()
	switch {
	case len(args) >= 2 && args[0] == "trigger":
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger %s: %v\n", args[1], err)
			return 1
		}
		fmt.Printf("enqueued %s (task id %s)\n", args[1], info.ID)
	case len(args) >= 1 && args[0] == "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect queue: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		fmt.Fprintln(os.Stderr, "usage: invoiceapp jobs trigger <task-type> | stats")
		return 2
	}
	return 0
}
