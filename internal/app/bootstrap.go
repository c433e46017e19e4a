package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"cityinfo-api/internal/auth"
	"cityinfo-api/internal/cities"
	"cityinfo-api/internal/config"
	"cityinfo-api/internal/db"
	"cityinfo-api/internal/files"
	"cityinfo-api/internal/httpx"
	"cityinfo-api/internal/maintenance"
	"cityinfo-api/internal/observability"
)

type Options struct {
	LoadDotEnv bool
	// RunMigrations applies migrations even when RUN_MIGRATIONS_ON_STARTUP
	// is off.
	RunMigrations bool
}

type Runtime struct {
	Config  config.Config
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

// Dependencies are the already opened resources the router is built from.
// Files may be nil when no bucket is configured.
type Dependencies struct {
	Config  config.Config
	DB      *sql.DB
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Files   files.Store
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.Release); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	database, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations || cfg.DB.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations_applied", nil)
	}

	authRepo := auth.NewRepository(database)
	if err := auth.BootstrapAdmin(ctx, authRepo, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.AdminCityID); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	var fileStore files.Store
	if cfg.Storage.Enabled() {
		s3Store, err := files.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init file storage: %w", err)
		}
		fileStore = s3Store
	} else {
		logger.Info("file_storage_disabled", nil)
	}

	handler, err := NewRouter(Dependencies{
		Config:  cfg,
		DB:      database,
		Logger:  logger,
		Metrics: observability.NewMetrics(cfg.MetricsEnabled),
		Files:   fileStore,
	})
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Runtime{
		Config:  cfg,
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(false)
	}

	signer, err := auth.NewSigner(auth.SignerConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	authRepo := auth.NewRepository(deps.DB)
	authService := auth.NewService(authRepo, authRepo, signer)
	authService.WithSecurityConfig(cfg.Auth.MaxAttempts, cfg.Auth.LockDuration, cfg.Auth.AccessTokenTTL)
	authService.WithRecorder(metrics)
	authHandler := auth.NewHandler(authService)

	gate := auth.NewGate(signer, auth.NewEvaluator(auth.NewPolicyRegistry()), metrics)
	loginLimiter := auth.NewLoginRateLimiter(cfg.Auth.RateLimitMax, cfg.Auth.RateLimitWindow).WithTrustedProxy(cfg.TrustProxyHeaders)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		deps.Logger,
		cfg.Maintenance.CronSecret,
		cfg.Maintenance.LoginAttemptRetention,
		cfg.Maintenance.BatchSize,
	)

	cityHandler := cities.NewHandler(cities.NewRepository(deps.DB), deps.Logger)
	fileHandler := files.NewHandler(deps.Files)

	// city scoped routes: token, then city_match on {cityId}
	city := func(h http.HandlerFunc) http.Handler {
		return gate.Authenticate(gate.RequireCity(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/authentication/authenticate", loginLimiter.Middleware(http.HandlerFunc(authHandler.Authenticate)))

	mux.Handle("GET /api/cities", gate.Authenticate(gate.Require(auth.PolicyHasName, http.HandlerFunc(cityHandler.ListCities))))
	mux.Handle("GET /api/cities/{cityId}", city(cityHandler.GetCity))
	mux.Handle("GET /api/cities/{cityId}/pointsofinterest", city(cityHandler.ListPointsOfInterest))
	mux.Handle("GET /api/cities/{cityId}/pointsofinterest/{poiId}", city(cityHandler.GetPointOfInterest))
	mux.Handle("POST /api/cities/{cityId}/pointsofinterest", city(cityHandler.CreatePointOfInterest))
	mux.Handle("PUT /api/cities/{cityId}/pointsofinterest/{poiId}", city(cityHandler.UpdatePointOfInterest))
	mux.Handle("PATCH /api/cities/{cityId}/pointsofinterest/{poiId}", city(cityHandler.PatchPointOfInterest))
	mux.Handle("DELETE /api/cities/{cityId}/pointsofinterest/{poiId}", city(cityHandler.DeletePointOfInterest))

	mux.Handle("GET /api/files/{fileId}", gate.Authenticate(http.HandlerFunc(fileHandler.Download)))
	mux.Handle("POST /api/files", gate.Authenticate(http.HandlerFunc(fileHandler.Upload)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(deps.DB))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := observability.MetricsMiddleware(metrics, mux)
	handler = observability.RequestLoggingMiddleware(deps.Logger, cfg.TrustProxyHeaders, handler)
	return observability.RecoverMiddleware(deps.Logger, handler), nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		httpx.WriteJSON(w, status, body)
	}
}
