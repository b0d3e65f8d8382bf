package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/orrn/printdesk/internal/api"
	"github.com/orrn/printdesk/internal/api/middleware"
	"github.com/orrn/printdesk/internal/config"
	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/db"
	"github.com/orrn/printdesk/internal/hub"
	"github.com/orrn/printdesk/internal/logging"
	"github.com/orrn/printdesk/internal/metrics"
	"github.com/orrn/printdesk/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("printdesk stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("printdesk shut down gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	store, err := db.Open(db.Config{
		Path:         cfg.Database.Path,
		BusyTimeout:  cfg.Database.BusyTimeout,
		QueryTimeout: cfg.Database.QueryTimeout,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	auth, err := middleware.NewAuthMiddleware(ctx, middleware.AuthConfig{
		Secret:        cfg.Auth.JWTSecret,
		TokenDuration: cfg.Auth.TokenDuration,
		SecureCookie:  cfg.Auth.SecureCookie,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	sender := webhook.NewSender(webhookConfig(cfg.Webhooks), logger)
	live := hub.New(hub.Config{
		SendBuffer:     cfg.Notifications.SendBuffer,
		WriteTimeout:   cfg.Notifications.WriteTimeout,
		PingInterval:   cfg.Notifications.PingInterval,
		AllowedOrigins: cfg.Notifications.AllowedOrigins,
	}, logger)

	dispatcher := core.NewDispatcher(store, live, sender, logger)
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.Deps{
		Jobs:          core.NewJobManager(store, dispatcher, sender, logger),
		Notifications: dispatcher,
		History:       core.NewHistoryService(store),
		Accounts:      core.NewAccountService(store, cfg.Auth.BcryptCost, logger),
		Hub:           live,
		Auth:          auth,
		DB:            store,
		IsAdmin:       cfg.Auth.IsAdmin,
		RecentLimit:   cfg.Notifications.RecentLimit,
		MetricsPath:   metricsPath,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sender.Run(gctx)
	})
	g.Go(func() error {
		return live.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting http server",
			slog.String("addr", srv.Addr),
			slog.Int("webhook_endpoints", len(cfg.Webhooks.Endpoints)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func webhookConfig(c config.WebhooksConfig) webhook.Config {
	endpoints := make([]webhook.Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		endpoints = append(endpoints, webhook.Endpoint{
			Name:   ep.Name,
			URL:    ep.URL,
			Secret: ep.Secret,
			Events: ep.Events,
		})
	}
	return webhook.Config{
		RetryCount:  c.RetryCount,
		RetryDelay:  c.RetryDelay,
		Timeout:     c.Timeout,
		WorkerCount: c.WorkerCount,
		QueueSize:   c.QueueSize,
		Endpoints:   endpoints,
	}
}
