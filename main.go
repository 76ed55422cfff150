package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	database "github.com/vozurbana/voz-urbana-api/app/db"
	appLogger "github.com/vozurbana/voz-urbana-api/app/logger"
	"github.com/vozurbana/voz-urbana-api/app/observability/metrics"
	"github.com/vozurbana/voz-urbana-api/config"
	"github.com/vozurbana/voz-urbana-api/internal/api/auth"
	"github.com/vozurbana/voz-urbana-api/internal/api/upload"
	appRouter "github.com/vozurbana/voz-urbana-api/internal/router"
)

//go:embed openapi.yml
var openapiSpec []byte

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Metrics ---
	metricsHandler, err := metrics.Setup()
	if err != nil {
		logger.Error("Failed to set up metrics exporter", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Dependency wiring ---
	authRepo := auth.NewPostgresRepository(pool, logger)
	tokenService := auth.NewTokenService(cfg.JWT)
	authService := auth.NewService(authRepo, tokenService, logger)
	authHandler := auth.NewHandler(authService, logger)

	objectStore, err := upload.NewS3Store(ctx, cfg.S3, logger)
	if err != nil {
		logger.Error("Failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}
	uploadHandler := upload.NewHandler(objectStore, logger)

	apiRouter := appRouter.SetupRouter(&appRouter.Config{
		AuthHandler:   authHandler,
		UploadHandler: uploadHandler,
		Authenticate:  auth.Authenticate(logger, tokenService, authRepo),
		RequireAdmin:  auth.RequireRole(logger, auth.RoleAdmin),
	})

	// --- Router ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))

	// Meta routes stay outside the authentication gate.
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	router.Handle("/metrics", metricsHandler)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(openapiSpec)
	})
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"),
	))

	router.Mount("/", apiRouter)

	// --- HTTP server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures the application logger: colored text in
// development, JSON everywhere else.
func setupLogger(mode string) *slog.Logger {
	if mode == "development" || mode == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		return slog.New(tint.NewHandler(os.Stdout, tintOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
