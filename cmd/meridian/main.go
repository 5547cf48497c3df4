package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-assist/meridian/internal/app"
	"github.com/meridian-assist/meridian/internal/cases"
	"github.com/meridian-assist/meridian/internal/companies"
	"github.com/meridian-assist/meridian/internal/invoices"
	"github.com/meridian-assist/meridian/internal/mail"
	"github.com/meridian-assist/meridian/internal/partners"
	"github.com/meridian-assist/meridian/internal/platform/cache"
	"github.com/meridian-assist/meridian/internal/platform/db"
	"github.com/meridian-assist/meridian/internal/platform/objstore"
	"github.com/meridian-assist/meridian/internal/reporting"
	"github.com/meridian-assist/meridian/internal/trash"
	"github.com/meridian-assist/meridian/jobs"
	"github.com/meridian-assist/meridian/report"
)

func main() {
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports will not be cached", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	store, err := objstore.NewMinioStore(ctx, objstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Secure:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("connect object storage", slog.Any("error", err))
		os.Exit(1)
	}

	mailer := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)

	pdfClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	renderer, err := report.NewInvoiceRenderer(pdfClient)
	if err != nil {
		logger.Error("init invoice renderer", slog.Any("error", err))
		os.Exit(1)
	}

	reportingRepo := reporting.NewRepository(pool)
	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reportingRepo, reportingCache)

	partnerRepo := partners.NewRepository(pool)
	partnerService := partners.NewService(partnerRepo)

	companyRepo := companies.NewRepository(pool)
	companyService := companies.NewService(companyRepo, store)

	caseRepo := cases.NewRepository(pool)
	caseService := cases.NewService(caseRepo, store, reportingService)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceSender := invoices.NewSender(invoiceRepo, renderer, mailer, store, logger)
	invoiceService := invoices.NewService(invoiceRepo, invoiceSender, reportingService)

	trashRepo := trash.NewRepository(pool)
	trashService := trash.NewService(trashRepo, store, logger)

	jobInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = jobInspector.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PartnerHandler:   partners.NewHandler(logger, partnerService),
		CompanyHandler:   companies.NewHandler(logger, companyService),
		CaseHandler:      cases.NewHandler(logger, caseService),
		InvoiceHandler:   invoices.NewHandler(logger, invoiceService),
		TrashHandler:     trash.NewHandler(logger, trashService),
		ReportingHandler: reporting.NewHandler(logger, reportingService),
		JobHandler:       jobs.NewHandler(jobInspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	logger.Info("shutdown complete")
}
