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

	"natours/internal/auth"
	"natours/internal/config"
	"natours/internal/database"
	"natours/internal/logger"
	"natours/internal/mail"
	"natours/internal/repository"
	"natours/internal/server"
	"natours/internal/services"
	"natours/internal/validator"
)

// @title           Natours API
// @version         1.0
// @description     Natours tour booking API: accounts, authentication and password lifecycle.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Credential primitives
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: appConfig.JWTSecret,
		Issuer: appConfig.JWTIssuer,
		TTL:    appConfig.JWTExpirationDur,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}
	hasher := auth.NewPasswordHasher(auth.DefaultPasswordCost)
	resets := auth.NewResetTokenVault(auth.DefaultResetTTL, nil)

	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Enabled:     appConfig.EmailEnabled,
		Host:        appConfig.EmailHost,
		Port:        appConfig.EmailPort,
		Username:    appConfig.EmailUsername,
		Password:    appConfig.EmailPassword,
		From:        appConfig.EmailFrom,
		ImplicitTLS: appConfig.EmailUseTLS,
		Timeout:     appConfig.EmailTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}
	if !appConfig.EmailEnabled {
		log.Warn("Email delivery is disabled; password reset requests will fail")
	}
	notifier := mail.NewNotifier(mailer, "10 minutes")

	// Initialize services
	validator.Register()
	db := dbManager.DB()
	userRepo := repository.NewUserRepository(db)
	auditService := services.NewAuditService(repository.NewAuditRepository(db))
	authService := services.NewAuthService(userRepo, hasher, tokens, resets, notifier, auditService, services.AuthOptions{
		AllowAdminSignup: appConfig.AllowAdminSignup,
	})
	userService := services.NewUserService(userRepo, auditService)

	router := server.NewRouter(server.Deps{
		AuthService:   authService,
		UserService:   userService,
		AppURL:        appConfig.AppURL,
		MetricsAPIKey: appConfig.MetricsAPIKey,
		TokenTTL:      appConfig.JWTExpirationDur,
		SecureCookies: appConfig.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Natours API on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}
