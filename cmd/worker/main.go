package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gridlog/gridlog/internal/app"
	"github.com/gridlog/gridlog/internal/notifications"
	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/platform/cache"
	"github.com/gridlog/gridlog/internal/platform/db"
	"github.com/gridlog/gridlog/internal/shared"
	"github.com/gridlog/gridlog/internal/users"
	"github.com/gridlog/gridlog/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Fail fast when Redis is unreachable; asynq maintains its own
	// connections from the same address.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger)

	periodsRepo := periods.NewRepository(pool, auditLogger)
	periodsService := periods.NewService(periodsRepo)
	periodsJob := periods.NewJob(periodsService, logger)

	var mailer notifications.Mailer
	if cfg.SMTPHost != "" {
		mailer = notifications.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	} else {
		mailer = notifications.NewLogMailer(logger)
	}
	notificationsRepo := notifications.NewRepository(pool)
	notificationsService := notifications.NewService(notificationsRepo, usersService, mailer, auditLogger, periodsService, logger)
	notificationsJob := notifications.NewJob(notificationsService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyDispatch, Handler: notificationsJob.HandleDispatch},
			{Type: jobs.TaskPeriodRollover, Handler: periodsJob.HandleRollover},
			{Type: jobs.TaskPeriodAutoClose, Handler: periodsJob.HandleAutoClose},
			{Type: jobs.TaskWeeklyReminder, Handler: notificationsJob.HandleWeeklyReminder},
			{Type: jobs.TaskDeadlineApproaching, Handler: notificationsJob.HandleDeadlineApproaching},
			{Type: jobs.TaskOverdueSummary, Handler: notificationsJob.HandleOverdueSummary},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RolloverSpec, Task: asynq.NewTask(jobs.TaskPeriodRollover, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.AutoCloseSpec, Task: asynq.NewTask(jobs.TaskPeriodAutoClose, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ReminderSpec, Task: asynq.NewTask(jobs.TaskWeeklyReminder, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.DeadlineSpec, Task: asynq.NewTask(jobs.TaskDeadlineApproaching, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.OverdueSpec, Task: asynq.NewTask(jobs.TaskOverdueSummary, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
