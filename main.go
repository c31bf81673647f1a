package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/api"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/attachments"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/config"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/database"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/logger"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/metrics"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			zapLogger.Fatal("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "development-only-secret"
		zapLogger.Warn("JWT_SECRET not set, using an insecure development secret")
	}

	ctx := context.Background()

	st, err := database.Open(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}

	files, err := attachments.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize attachment store", zap.Error(err))
	}

	collector := metrics.NewCollector()
	policy := services.AccessPolicy{ReviewerRole: cfg.ReviewerRole, AdminRole: cfg.AdminRole}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire)

	users := services.NewUserService(st, tokens, policy, cfg.InstitutionDomain, zapLogger.Named("users"))
	svc := api.Services{
		Policy: policy,
		Users:  users,
		Reports: services.NewReportService(st, services.NewAnalyzer(cfg.InstitutionDomain), files, policy,
			services.AttachmentLimits{MaxFiles: cfg.MaxAttachments, MaxFileSize: cfg.MaxFileSize}, zapLogger.Named("reports")),
		Dashboard: services.NewDashboardService(st, collector, policy, zapLogger.Named("dashboard")),
		Export:    services.NewExportService(st, st, policy, zapLogger.Named("export")),
		Education: services.NewEducationService(st, policy, zapLogger.Named("education")),
		Chat:      services.NewChatService(cfg.AIAPIKey, cfg.AIModelName, zapLogger.Named("chat")),
	}

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			zapLogger.Fatal("failed to bootstrap admin account", zap.Error(err))
		}
		if created {
			zapLogger.Info("bootstrap admin account created", zap.String("email", cfg.BootstrapAdminEmail))
		}
	}

	server := api.NewServer(cfg, svc, collector, zapLogger.Named("http"))
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("starting server", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := st.Close(shutdownCtx); err != nil {
		zapLogger.Error("failed to close store", zap.Error(err))
	}
	zapLogger.Info("server exited")
}
