package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "storefront/docs"
	"storefront/internal/config"
	httpapi "storefront/internal/http"
	"storefront/internal/notify"
	"storefront/internal/obs"
	"storefront/internal/payment"
	"storefront/internal/ratelimit"
	"storefront/internal/repository"
	"storefront/internal/service"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Storefront order service",
		Long:         "Catalog, order intake with PIX payment codes, notifications and JSON document backups.",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(serveCmd(), backupCmd(), restoreCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := obs.NewLogger(cfg.LogLevel)

	store, err := repository.Open(cfg.DBFile, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	tx := repository.NewFileTx(store)
	ordersRepo := repository.NewFileOrders(store)
	subsRepo := repository.NewFileSubscriptions(store)

	dispatcher, closeChannels := buildDispatcher(cfg, subsRepo, logger)
	defer closeChannels()
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher.Start(workersCtx, cfg.NotifyWorkers)

	payee := payment.Payee{Key: cfg.PixKey, Name: cfg.PixName, City: cfg.PixCity}
	gen := payment.NewPixGenerator()

	var limiter httpapi.RateLimiter
	if cfg.RedisURL != "" {
		l, client, err := ratelimit.NewFromURL(cfg.RedisURL, cfg.OrderRateLimit, cfg.OrderRateWindow)
		if err != nil {
			logger.Warn("rate_limit_disabled", "error", err)
		} else {
			defer client.Close()
			limiter = l
			logger.Info("rate_limit_enabled", "limit", cfg.OrderRateLimit, "window", cfg.OrderRateWindow.String())
		}
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Products:      service.NewProductService(store, tx),
		Orders:        service.NewOrderService(store, ordersRepo, tx, gen, payee, dispatcher, logger),
		Payments:      service.NewPaymentService(gen, payee),
		Subscriptions: service.NewSubscriptionService(subsRepo, cfg.VAPIDPublicKey),
		Backup:        service.NewBackupService(store, tx, logger),
		Limiter:       limiter,
		Auth: httpapi.AuthConfig{
			User:         cfg.AdminUser,
			Password:     cfg.AdminPassword,
			PasswordHash: cfg.AdminPasswordHash,
			Realm:        cfg.AdminRealm,
			Token:        cfg.DebugToken,
		},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen", "addr", httpServer.Addr, "db_file", store.Path())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutdown_begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_http_failed", "error", err)
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		logger.Warn("shutdown_drain_incomplete", "error", err)
	}
	st := dispatcher.Stats()
	logger.Info("shutdown_done", "processed", st.Processed, "dropped", st.Dropped, "failed", st.Failed)
	return nil
}

// buildDispatcher wires every configured channel; unconfigured ones stay registered and no-op.
func buildDispatcher(cfg config.Config, subs repository.SubscriptionRepository, logger *slog.Logger) (*notify.Dispatcher, func()) {
	client := &http.Client{Timeout: cfg.NotifyTimeout}

	telegram := notify.NewTelegramChannel(cfg.TelegramToken, cfg.TelegramChatID, cfg.TelegramBaseURL, client)
	pushEnabled := cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != ""
	push := notify.NewPushChannel(subs, &notify.WebPushSender{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
		TTL:        60,
		Client:     client,
	}, pushEnabled, cfg.PushConcurrency, logger)
	broker := notify.NewBrokerChannel(cfg.AMQPURL, cfg.AMQPExchange)

	logger.Info("notify_channels",
		"telegram", telegram.Enabled(),
		"push", pushEnabled,
		"broker", broker.Enabled(),
		"workers", cfg.NotifyWorkers,
		"queue", cfg.NotifyQueueSize,
	)
	d := notify.NewDispatcher(logger, cfg.NotifyQueueSize, cfg.NotifyTimeout, telegram, push, broker)
	return d, func() { _ = broker.Close() }
}
