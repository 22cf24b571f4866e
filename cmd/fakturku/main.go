package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fakturku/fakturku/internal/app"
	"github.com/fakturku/fakturku/internal/invoicing"
	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/masterdata"
	"github.com/fakturku/fakturku/internal/payments"
	"github.com/fakturku/fakturku/internal/platform/cache"
	"github.com/fakturku/fakturku/internal/platform/db"
	"github.com/fakturku/fakturku/internal/report"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	masterRepo := masterdata.NewRepository(pool)
	masterService := masterdata.NewService(masterRepo)
	masterHandler := masterdata.NewHandler(logger, masterService)

	invoiceRepo := invoicing.NewRepository(pool)
	invoiceService := invoicing.NewService(invoiceRepo, ledgerService, cfg.DefaultCurrency)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	pdfRenderer := report.NewInvoiceRenderer(pdfClient, masterService)
	invoiceHandler := invoicing.NewHandler(logger, invoiceService, pdfRenderer)

	paymentRepo := payments.NewRepository(pool)
	paymentService := payments.NewService(paymentRepo)
	paymentHandler := payments.NewHandler(logger, paymentService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InvoiceHandler:    invoiceHandler,
		PaymentHandler:    paymentHandler,
		LedgerHandler:     ledgerHandler,
		MasterDataHandler: masterHandler,
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
