package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"worklog/internal/domain/audit"
	"worklog/internal/domain/auth"
	"worklog/internal/domain/deduction"
	"worklog/internal/domain/driver"
	"worklog/internal/domain/job"
	"worklog/internal/domain/rcti"
	"worklog/internal/platform/config"
	cryptoutil "worklog/internal/platform/crypto"
	"worklog/internal/platform/db"
	"worklog/internal/platform/jobs"
	"worklog/internal/platform/metrics"
	"worklog/internal/transport/http/api"
	audithandler "worklog/internal/transport/http/handlers/audit"
	authhandler "worklog/internal/transport/http/handlers/auth"
	deductionhandler "worklog/internal/transport/http/handlers/deductions"
	driverhandler "worklog/internal/transport/http/handlers/drivers"
	jobhandler "worklog/internal/transport/http/handlers/jobs"
	rctihandler "worklog/internal/transport/http/handlers/rcti"
	"worklog/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Metrics *metrics.Collector
	Jobs    *jobs.Service
	Router  http.Handler
}

// New connects to the database, prepares the schema and builds the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app := &App{
		Config:  cfg,
		DB:      pool,
		Metrics: metrics.New(),
		Jobs:    jobs.New(pool, cfg.MaintenanceEvery, cfg.IdempotencyTTL),
	}
	router, err := NewRouter(cfg, pool, app.Metrics)
	if err != nil {
		pool.Close()
		return nil, err
	}
	app.Router = router
	return app, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewRouter wires stores, services and handlers onto a chi router.
func NewRouter(cfg config.Config, pool *pgxpool.Pool, collector *metrics.Collector) (http.Handler, error) {
	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("data encryption key: %w", err)
	}

	driverStore := driver.NewStore(pool, crypto)
	jobStore := job.NewStore(pool)
	deductionStore := deduction.NewStore(pool)
	rctiStore := rcti.NewStore(pool, driverStore, jobStore)

	auditService := audit.New(pool)
	policy := auth.NewAccessPolicy(cfg.Access)
	idempotency := middleware.NewIdempotencyStore(pool, cfg.IdempotencyTTL)
	company := rcti.Company{Name: cfg.CompanyName, ABN: cfg.CompanyABN}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger(collector))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermAuditRead, policy)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler := authhandler.NewHandler(auth.NewService(auth.NewStore(pool), cfg.JWTSecret), auditService)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/me", authHandler.HandleMe)

		driverhandler.NewHandler(driver.NewService(driverStore), policy, auditService).RegisterRoutes(r)
		jobhandler.NewHandler(job.NewService(jobStore), policy, auditService).RegisterRoutes(r)
		deductionhandler.NewHandler(deduction.NewService(deductionStore), policy, auditService).RegisterRoutes(r)
		rctihandler.NewHandler(rcti.NewService(rctiStore, deductionStore), policy, auditService, idempotency, collector, company).RegisterRoutes(r)
		audithandler.NewHandler(auditService, policy).RegisterRoutes(r)
	})

	return router, nil
}

// Run loads configuration and serves until SIGINT or SIGTERM.
func Run() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()
	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown failed", "err", err)
		}
	}()

	slog.Info("worklog server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
