package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-service/internal/api/http"
	"github.com/spec-kit/support-service/internal/api/http/handlers"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/kafka"
	"github.com/spec-kit/support-service/internal/realtime"
	"github.com/spec-kit/support-service/internal/service"
	"github.com/spec-kit/support-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the realtime websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger
	cfg := c.cfg

	authMiddleware := auth.NewAuthMiddleware(c.tokens, c.repos.users)
	hub := realtime.NewHub(authMiddleware, logger)

	var broadcaster realtime.Broadcaster = hub
	if c.redis != nil {
		broadcaster = realtime.NewRedisBroadcaster(c.redis.Client, cfg.Realtime.Channel)
		go func() {
			if err := hub.RunRedis(ctx, c.redis.Client, cfg.Realtime.Channel); err != nil {
				logger.Error("realtime relay stopped", zap.Error(err))
			}
		}()
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close() //nolint:errcheck

	notifyDeps := service.NotificationDependencies{
		Dispatcher:  c.dispatcher,
		Broadcaster: broadcaster,
		Metrics:     c.metrics,
		Logger:      logger,
	}
	var eventWorker *worker.NotificationWorker
	if producer.Enabled() {
		eventWorker = worker.NewNotificationWorker(producer, 0, logger)
		notifyDeps.Producer = eventWorker
	}
	notifications := service.NewNotificationService(notifyDeps)
	// stopped after the servers drain, not on the signal
	worker.StartNotificationWorker(context.WithoutCancel(ctx), notifications, eventWorker)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, c.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, c.postgres, c.redis, c.metrics),
		Users:          handlers.NewUsersHandler(c.auth),
		Sessions:       handlers.NewSupportSessionsHandler(c.sessions),
		Tickets:        handlers.NewTicketsHandler(c.tickets),
		StaffTickets:   handlers.NewStaffTicketsHandler(c.tickets, c.assignments),
		SupportPlans:   handlers.NewTiersHandler(c.plans),
		LoyaltyRules:   handlers.NewTiersHandler(c.loyalty),
		Staff:          handlers.NewStaffHandler(c.staff),
		AuthMiddleware: authMiddleware,
	})

	wsServer := &http.Server{
		Addr:              cfg.Realtime.Addr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("realtime server listening", zap.String("addr", cfg.Realtime.Addr))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("realtime shutdown", zap.Error(err))
	}
	if eventWorker != nil {
		eventWorker.Stop()
	}
	return serveErr
}
