package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimitrije/shipyard/internal/config"
	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/handlers"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/metrics"
	authmw "github.com/dimitrije/shipyard/internal/middleware"
	"github.com/dimitrije/shipyard/internal/server"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg, "dataservice")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if _, err := services.PrepareDatabase(ctx, db, zlog); err != nil {
		zlog.Fatal("failed to prepare database", zap.Error(err))
	}

	tokenService := services.NewCrossServiceTokenService(cfg.CrossServiceSecret, cfg.CrossServiceTokenTTL)
	dataHandler := handlers.NewDataHandler(services.NewTenantService(db), services.NewInstallationService(db))

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())

	internal := app.Group("/internal/v1")
	internal.Use(authmw.CrossServiceAuth(tokenService))
	internal.Get("/context", dataHandler.Context)
	internal.Get("/tenant/members", dataHandler.Members)
	internal.Get("/tenant/installations", dataHandler.Installations)

	app.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})
	app.Get("/metrics", func(c *drift.Context) {
		metrics.Handler().ServeHTTP(c.Response, c.Request)
	})

	if err := server.Run(ctx, zlog, fmt.Sprintf(":%s", cfg.DataServicePort), server.Wrap(zlog, app)); err != nil {
		zlog.Fatal("dataservice stopped", zap.Error(err))
	}
	zlog.Info("dataservice stopped")
}
