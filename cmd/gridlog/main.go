package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gridlog/gridlog/internal/app"
	"github.com/gridlog/gridlog/internal/audit"
	"github.com/gridlog/gridlog/internal/notifications"
	"github.com/gridlog/gridlog/internal/observability"
	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/platform/cache"
	"github.com/gridlog/gridlog/internal/platform/db"
	"github.com/gridlog/gridlog/internal/reports"
	"github.com/gridlog/gridlog/internal/shared"
	"github.com/gridlog/gridlog/internal/users"
	"github.com/gridlog/gridlog/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	auditLogger := shared.NewAuditLogger(dbpool)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	periodsRepo := periods.NewRepository(dbpool, auditLogger)
	periodsService := periods.NewService(periodsRepo)
	periodsHandler := periods.NewHandler(logger, periodsService)

	publisher, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	reportsRepo := reports.NewRepository(dbpool, auditLogger)
	reportsService := reports.NewService(reportsRepo, usersService, periodsService, reports.NewHTMLSanitizer(), publisher, logger)
	statsCache := reports.NewStatsCache(redisClient, cfg.StatsTTL)
	dashboard := reports.NewDashboard(reportsRepo, periodsService, statsCache)
	reportsHandler := reports.NewHandler(logger, reportsService, dashboard)

	var mailer notifications.Mailer
	if cfg.SMTPHost != "" {
		mailer = notifications.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	} else {
		mailer = notifications.NewLogMailer(logger)
	}
	notificationsRepo := notifications.NewRepository(dbpool)
	notificationsService := notifications.NewService(notificationsRepo, usersService, mailer, auditLogger, periodsService, logger)
	notificationsHandler := notifications.NewHandler(notificationsService)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Resolver:             usersService,
		Metrics:              metrics,
		UsersHandler:         usersHandler,
		PeriodsHandler:       periodsHandler,
		ReportsHandler:       reportsHandler,
		NotificationsHandler: notificationsHandler,
		AuditHandler:         auditHandler,
		JobHandler:           jobHandler,
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
