package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/beach-weather-recommender/internal/api/http"
	"github.com/i474232898/beach-weather-recommender/internal/scheduler"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	c, err := build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.close(context.Background()); err != nil {
			c.log.WithError(err).Error("failed to close store")
		}
	}()

	// Scheduler that periodically warms the cache.
	sched := scheduler.New(c.service, c.cfg.RefreshInterval, 2*c.cfg.HTTPTimeout, c.log.WithField("component", "scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := newApp(c)

	go func() {
		c.log.WithField("port", c.cfg.Port).Info("starting beach weather API")
		if err := app.Listen(":" + c.cfg.Port); err != nil {
			c.log.WithError(err).Error("fiber server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		c.log.WithError(err).Error("error during shutdown")
	}
	return nil
}

func newApp(c *components) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "beach-weather-recommender",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return ctx.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status":  "ok",
			"service": "beach-weather-recommender",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, c.service, httpapi.Options{StaleOnError: c.cfg.StaleOnError})
	return app
}
