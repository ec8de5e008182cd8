package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"realty/internal/app/bootstrap"
	"realty/internal/infra/config"
	ginserver "realty/internal/infra/http/gin"
	"realty/internal/infra/obs"
	"realty/internal/infra/security"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-operator-key" {
		os.Exit(hashOperatorKey(os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	logger := obs.NewLogger(os.Getenv("APP_ENV"))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = obs.NewLogger(cfg.Env)

	infra, err := buildInfrastructure(ctx, cfg, logger)
	if err != nil {
		logger.Error("infrastructure setup failed", "error", err)
		os.Exit(1)
	}
	defer infra.close(logger)

	app, err := bootstrap.Build(infra.deps, bootstrap.Settings{
		SuccessURL:          cfg.CheckoutSuccessURL,
		CancelURL:           cfg.CheckoutCancelURL,
		CheckoutSessionTTL:  cfg.CheckoutSessionTTL,
		PendingTTL:          cfg.PendingTTL,
		EnforceAvailability: cfg.EnforceAvailability,
		CalendarDomain:      cfg.CalendarDomain,
		SyncLockTTL:         5 * time.Minute,
	})
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	if cfg.PropertiesFixtures != "" {
		if err := loadPropertyFixtures(ctx, app, cfg.PropertiesFixtures, logger); err != nil {
			logger.Warn("property fixtures load failed", "error", err, "path", cfg.PropertiesFixtures)
		}
	}

	go infra.relay.run(ctx, logger)
	go scheduler(app, cfg, logger).Run(ctx)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: infra.checks}, ginserver.Deps{
		Commands:     app.Commands,
		Queries:      app.Queries,
		OperatorKeys: infra.operatorKey,
		Logger:       logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// hashOperatorKey prints the bcrypt hash to put in OPERATOR_KEY_HASH.
func hashOperatorKey(args []string) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: realty hash-operator-key <key>")
		return 2
	}
	hash, err := security.HashOperatorKey(args[0], bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
