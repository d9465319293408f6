package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/zero71st/farmgate/internal/app"
	"github.com/zero71st/farmgate/internal/config"
)

// RunServer starts the HTTP server with graceful shutdown support.
// Loads configuration, initializes the DI container, starts the Gin HTTP
// server plus the background maintenance jobs (session sweep, rate limit
// cleanup, usage recording, key expiry). Blocks until receiving
// SIGINT/SIGTERM or encountering a fatal error. On shutdown signal,
// gracefully stops the servers within DBConnMaxLifetime timeout.
func RunServer(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	// Get Metrics server from container
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	recorder, err := container.UsageRecorder()
	if err != nil {
		return fmt.Errorf("failed to initialize usage recorder: %w", err)
	}

	keyUseCase, err := container.KeyUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key use case: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start background maintenance jobs
	jobs, jobsCtx := errgroup.WithContext(ctx)
	jobs.Go(func() error {
		container.SessionManager().Run(jobsCtx, cfg.SessionCleanupInterval)
		return nil
	})
	jobs.Go(func() error {
		container.RateLimiter().Run(jobsCtx, rateLimitCleanupInterval(cfg))
		return nil
	})
	jobs.Go(func() error {
		recorder.Run(jobsCtx)
		return nil
	})
	jobs.Go(func() error {
		keyUseCase.RunCleanup(jobsCtx, cfg.KeyCleanupInterval)
		return nil
	})

	// Start servers in goroutines
	serverErr := make(chan error, 2)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	var shutdownErrors []error

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownErrors = append(shutdownErrors, err)
	}

	// Stop background jobs before shutting down the servers so the usage
	// recorder can drain its queue.
	cancel()
	if err := jobs.Wait(); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("background jobs: %w", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return errors.Join(shutdownErrors...)
	}

	return nil
}

// rateLimitCleanupInterval picks the shortest configured policy cleanup
// interval, falling back to five minutes when no policy sets one.
func rateLimitCleanupInterval(cfg *config.Config) time.Duration {
	shortest := 0
	for _, policy := range cfg.RateLimitPolicies {
		if policy.CleanupIntervalMinutes <= 0 {
			continue
		}
		if shortest == 0 || policy.CleanupIntervalMinutes < shortest {
			shortest = policy.CleanupIntervalMinutes
		}
	}
	if shortest == 0 {
		shortest = 5
	}
	return time.Duration(shortest) * time.Minute
}
