package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/background"
	"github.com/pittsbowling/api/internal/config"
	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/handlers"
	middlewareCustom "github.com/pittsbowling/api/internal/middleware"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/observability"
	"github.com/pittsbowling/api/internal/repositories"
	"github.com/pittsbowling/api/internal/routes"
	"github.com/pittsbowling/api/internal/services"
	"github.com/pittsbowling/api/internal/twofactor"
	pkgauth "github.com/pittsbowling/api/pkg/auth"
	pkghttp "github.com/pittsbowling/api/pkg/http"
	pkglogger "github.com/pittsbowling/api/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Server.Env); err != nil {
		logger.Error("failed to initialize sentry", slog.Any("error", err))
		os.Exit(1)
	}
	defer observability.FlushSentry()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewRefreshTokenRepository(db)
	laneRepo := repositories.NewLaneRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	noteRepo := repositories.NewOrderNoteRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(tokenRepo, logger, cfg.Auth.CleanupInterval)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		cfg.Auth.EmailTokenSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// 2FA code storage: shared Redis when configured, otherwise in-process
	var codeStore twofactor.CodeStore
	if cfg.TwoFactor.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.TwoFactor.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		codeStore = twofactor.NewRedisStore(redisClient)
		logger.Info("two-factor codes stored in redis", slog.String("addr", cfg.TwoFactor.RedisAddr))
	} else {
		codeStore = twofactor.NewMemoryStore()
		logger.Info("two-factor codes stored in process memory")
	}

	// AWS SES email service
	notifier, err := services.NewAWSSESNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	lockoutService := services.NewLockoutService(
		userRepo,
		auditLogger,
		cfg.Auth.MaxFailedAttempts,
		cfg.Auth.LockDuration,
		cfg.Auth.MaxTemporaryLocks,
	)
	twoFactorService := services.NewTwoFactorService(
		codeStore,
		notifier,
		auditLogger,
		cfg.TwoFactor.CodeExpiry,
		cfg.TwoFactor.ResendCooldown,
		cfg.TwoFactor.MaxResends,
	)
	authService := services.NewAuthService(
		userRepo,
		tokenRepo,
		lockoutService,
		twoFactorService,
		notifier,
		tokenManager,
		auditLogger,
		logger,
		cfg.Server.FrontendOrigin,
		cfg.Auth.EmailVerifyExpiry,
		cfg.Auth.PasswordResetExpiry,
	)
	availabilityService := services.NewAvailabilityService(laneRepo)
	reservationService := services.NewReservationService(reservationRepo, noteRepo, availabilityService, notifier, logger)

	cookieCfg := auth.CookieConfig{
		Secure: cfg.Server.Env == "production",
		Domain: os.Getenv("COOKIE_DOMAIN"),
	}
	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: parseTrustedProxies(),
	}

	captchaVerifier := services.NewRecaptchaVerifier(cfg.Captcha.RecaptchaSecret, logger)
	if !captchaVerifier.Enabled() {
		logger.Warn("RECAPTCHA_SECRET not set, login bot check disabled")
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, captchaVerifier, cookieCfg, ipConfig)
	oauthHandler := handlers.NewOAuthHandler(authService, cfg.OAuth, cookieCfg, ipConfig, cfg.Server.FrontendOrigin, logger)
	laneHandler := handlers.NewLaneHandler(laneRepo, availabilityService, cfg.Venue.OpenHour, cfg.Venue.CloseHour)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	notificationHandler := handlers.NewNotificationHandler(noteRepo)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(observability.Recoverer)
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.APIRateLimit()))
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(
		router,
		authHandler,
		oauthHandler,
		laneHandler,
		reservationHandler,
		notificationHandler,
		tokenManager,
		userRepo,
	)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseTrustedProxies reads TRUSTED_PROXIES as a comma-separated list of
// CIDR ranges. Empty means forwarding headers are never trusted.
func parseTrustedProxies() []string {
	raw := os.Getenv("TRUSTED_PROXIES")
	if raw == "" {
		return nil
	}

	var proxies []string
	for _, cidr := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(cidr); trimmed != "" {
			proxies = append(proxies, trimmed)
		}
	}
	return proxies
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(os.Getenv("ADMIN_EMAIL"))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Name:          "Admin",
		Username:      "admin",
		Email:         adminEmail,
		PasswordHash:  hashedPassword,
		EmailVerified: true,
		Role:          "admin",
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
