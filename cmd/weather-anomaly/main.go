package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-anomaly/internal/api/http"
	"github.com/i474232898/weather-anomaly/internal/app"
	"github.com/i474232898/weather-anomaly/internal/config"
	"github.com/i474232898/weather-anomaly/internal/logging"
	"github.com/i474232898/weather-anomaly/internal/metrics"
	"github.com/i474232898/weather-anomaly/internal/scheduler"
)

func main() {
	// Load configuration (.env, optional YAML file, ANOMALY_* env).
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.LogLevel)

	// Service, report store and weather client.
	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to wire service", "error", err)
		os.Exit(1)
	}

	// Baselines and batch scoring happen once at startup.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.LoadDataset(ctx); err != nil {
		log.Error("failed to load dataset", "path", cfg.DataPath, "error", err)
		os.Exit(1)
	}

	// Scheduler that periodically runs live checks.
	cities := cfg.CityList()
	if cfg.CheckInterval > 0 && cfg.OpenWeatherAPIKey != "" {
		sched := scheduler.New(cities, cfg.CheckInterval, a.Service, log)
		if err := sched.Start(); err != nil {
			log.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	} else {
		log.Info("scheduled live checks disabled")
	}

	// Basic app configuration
	srv := fiber.New(fiber.Config{
		AppName:               "weather-anomaly",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	srv.Use(logger.New())
	srv.Use(recover.New())
	srv.Use(httpapi.Metrics())

	srv.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		if a.Service.Analysis() == nil {
			status = "loading"
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"service": "weather-anomaly",
		})
	})
	srv.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// API routes.
	httpapi.RegisterRoutes(srv, httpapi.Deps{
		Service:       a.Service,
		Reports:       a.Store,
		DefaultCities: cities,
	})

	// Start server with graceful shutdown
	go func() {
		if err := srv.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()
	log.Info("listening", "port", cfg.Port, "provider", cfg.WeatherProvider, "cities", len(cities))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
