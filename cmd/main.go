package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/suteetoe/vendor-service/internal/handler"
	"github.com/suteetoe/vendor-service/internal/middleware"
	"github.com/suteetoe/vendor-service/internal/performance"
	"github.com/suteetoe/vendor-service/pkg/config"
	"github.com/suteetoe/vendor-service/pkg/database"
	"github.com/suteetoe/vendor-service/pkg/jwtutil"
	"github.com/suteetoe/vendor-service/pkg/logger"
	"github.com/suteetoe/vendor-service/prometheus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync() //nolint:errcheck
	log.Info("Starting vendor service...", cfg.LogConfig()...)

	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utilities initialized")

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prometheus.New(cfg.Metrics.Prefix, registry)
	httpMetrics := prometheus.NewHTTPMetrics(cfg.ServiceName, registry)
	log.Info("Prometheus metrics initialized", zap.String("prefix", cfg.Metrics.Prefix))

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close() //nolint:errcheck
	log.Info("Database connection established and migrations completed",
		zap.String("driver", cfg.DB.Driver),
		zap.String("db_name", cfg.DB.DBName))

	perf := performance.NewGormService(db,
		performance.WithMetrics(metrics),
		performance.WithLogger(log),
	)
	h := handler.New(db, perf, metrics)

	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(httpMetrics.Middleware())
	e.Use(middleware.RequestLogger(metrics))

	// Public routes
	e.GET("/", handler.Hello)
	e.GET("/health", handler.Hello)
	e.GET("/metrics", echo.WrapHandler(prometheus.Handler(registry)))

	// API routes that require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware(metrics))
	h.Register(api)

	go func() {
		port := cfg.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
