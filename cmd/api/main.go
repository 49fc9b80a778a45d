package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/perkpilot/backend/api/routes"
	"github.com/perkpilot/backend/internal/auth"
	"github.com/perkpilot/backend/internal/forum"
	"github.com/perkpilot/backend/internal/licensing"
	"github.com/perkpilot/backend/internal/news"
	"github.com/perkpilot/backend/internal/payments"
	"github.com/perkpilot/backend/internal/templates"
	"github.com/perkpilot/backend/internal/users"
	"github.com/perkpilot/backend/pkg/auth/session"
	"github.com/perkpilot/backend/pkg/config"
	"github.com/perkpilot/backend/pkg/db"
	"github.com/perkpilot/backend/pkg/logger"
	"github.com/perkpilot/backend/pkg/metrics"
	"github.com/perkpilot/backend/pkg/migrate"
	"github.com/perkpilot/backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	licenseRepo := licensing.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		LicenseRepo:    licenseRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	signer, err := licensing.NewSigner(cfg.License.SigningSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to create license signer", err)
		os.Exit(1)
	}
	issuer, err := licensing.NewIssuer(licenseRepo, licensing.SystemClock(), cfg.License.APIKeyBytes)
	if err != nil {
		logg.Error(context.Background(), "failed to create license issuer", err)
		os.Exit(1)
	}
	licensingService, err := licensing.NewService(licenseRepo, userRepo, signer, issuer, licensing.SystemClock())
	if err != nil {
		logg.Error(context.Background(), "failed to create licensing service", err)
		os.Exit(1)
	}

	forumService, err := forum.NewService(forum.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create forum service", err)
		os.Exit(1)
	}

	newsService, err := news.NewService(news.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create news service", err)
		os.Exit(1)
	}

	templatesService, err := templates.NewService(templates.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create templates service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(dbClient.DB()),
		Licenses: licenseRepo,
		DB:       dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	validationMetrics := metrics.NewValidationMetrics(prometheus.DefaultRegisterer)

	router := routes.NewRouter(routes.Deps{
		Config:            cfg,
		Logger:            logg,
		DB:                dbClient,
		Redis:             redisClient,
		Sessions:          sessionManager,
		AuthService:       authService,
		LicensingService:  licensingService,
		LicenseKeySource:  licenseRepo,
		ForumService:      forumService,
		NewsService:       newsService,
		TemplatesService:  templatesService,
		PaymentsService:   paymentsService,
		ValidationMetrics: validationMetrics,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}
