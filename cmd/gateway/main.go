package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/shipyard/internal/config"
	"github.com/dimitrije/shipyard/internal/cookies"
	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/dataclient"
	"github.com/dimitrije/shipyard/internal/handlers"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/metrics"
	authmw "github.com/dimitrije/shipyard/internal/middleware"
	"github.com/dimitrije/shipyard/internal/oauth"
	"github.com/dimitrije/shipyard/internal/server"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg, "gateway")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	for _, w := range cfg.Warnings() {
		zlog.Warn(w)
	}

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

	userService := services.NewUserService(db)
	sessionService := services.NewSessionService(db, cfg.Session.TTL, cfg.Onboarding.TTL)
	installationService := services.NewInstallationService(db)
	tenantService := services.NewTenantService(db)
	tokenService := services.NewCrossServiceTokenService(cfg.CrossServiceSecret, cfg.CrossServiceTokenTTL)

	wait := services.DefaultWaitPolicy()
	wait.Attempts = cfg.Onboarding.WaitAttempts
	wait.Initial = cfg.Onboarding.WaitInitial
	onboardingService := services.NewOnboardingService(
		sessionService, userService, installationService, tenantService,
		wait, !cfg.IsProduction(), zlog.Named("onboarding"),
	)

	sessionCookies := cookies.NewSessionCookies(cfg.Session.CookieName, cfg.Session.TTL, cfg.IsProduction())
	onboardingCookies := cookies.NewOnboardingCookies(cfg.Onboarding.CookieName, cfg.Onboarding.TTL, cfg.IsProduction())

	authHandler := handlers.NewAuthHandler(
		cfg, oauth.NewGitHubProvider(cfg.GitHub),
		userService, sessionService, onboardingService, tenantService,
		sessionCookies, onboardingCookies,
	)
	setupHandler := handlers.NewSetupHandler(cfg.FrontendURL, onboardingService, onboardingCookies)
	webhookHandler := handlers.NewWebhookHandler(cfg.GitHub.WebhookSecret, installationService)
	tenantHandler := handlers.NewTenantHandler(
		tenantService, sessionService, tokenService,
		dataclient.New(cfg.DataServiceURL, 10*time.Second),
	)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       86400,
	}))

	auth := app.Group("/auth")
	auth.Get("/github/login", authHandler.Login)
	auth.Get("/github/callback", authHandler.Callback)
	auth.Get("/setup", setupHandler.Setup)

	signedIn := app.Group("/auth")
	signedIn.Use(authmw.Session(sessionService, sessionCookies))
	signedIn.Get("/github/install", authHandler.Install)
	signedIn.Post("/logout", authHandler.Logout)

	app.Post("/webhook/github", webhookHandler.HandleGitHub)

	api := app.Group("/api/v1")
	api.Use(authmw.Session(sessionService, sessionCookies))
	api.Get("/me", tenantHandler.Me)
	api.Get("/tenants", tenantHandler.List)
	api.Post("/tenants/switch", tenantHandler.Switch)
	api.Get("/context", tenantHandler.Context)
	api.Get("/tenant/members", tenantHandler.Members)
	api.Get("/tenant/installations", tenantHandler.Installations)

	app.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})
	app.Get("/metrics", func(c *drift.Context) {
		metrics.Handler().ServeHTTP(c.Response, c.Request)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx, zlog, fmt.Sprintf(":%s", cfg.GatewayPort), server.Wrap(zlog, app))
	})

	g.Go(func() error {
		authHandler.CleanupStates(gctx)
		return nil
	})

	g.Go(func() error {
		server.Every(gctx, 1*time.Hour, func(ctx context.Context) {
			if err := sessionService.CleanupExpired(ctx); err != nil {
				zlog.Warn("session cleanup failed", zap.Error(err))
			}
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		zlog.Fatal("gateway stopped", zap.Error(err))
	}
	zlog.Info("gateway stopped")
}
