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

	"icu-bed-management/internal/config"
	"icu-bed-management/internal/database"
	"icu-bed-management/internal/handler"
	"icu-bed-management/internal/logger"
	"icu-bed-management/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "ICU bed management API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rosterCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the KPI warm-up worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log, err := logger.New(cfg.Log, "icu-bed-management")
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Connect(cfg, log)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("Schema migrated")
			return nil
		},
	}
}

func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster",
		Short: "Provision the configured beds and print the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log, err := logger.New(cfg.Log, "icu-bed-management")
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(log)

			beds, err := a.rosterService.Roster(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, bed := range beds {
				fmt.Fprintf(out, "%s\t%s\t%s\n", bed.BedNumber, bed.Status, bed.Initials)
			}
			return nil
		},
	}
}

func runServer() error {
	// 1. Load configuration
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.Log, "icu-bed-management")
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("Configuration loaded successfully", zap.String("db_driver", cfg.Database.Driver))

	// 2. Wire stores, cache and services
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	// 3. Provision the roster before taking traffic
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := a.rosterService.Roster(ctx); err != nil {
		log.Warn("Failed to provision roster at startup", zap.Error(err))
	}

	// 4. Start background worker in goroutine
	go a.workerService.Start(ctx)

	// 5. Setup Gin
	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	beds, dashboard, settings, metricsHandler := a.handlers(cfg, log)
	handler.RegisterRoutes(r, beds, dashboard, settings, metricsHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// 6. Setup graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("Shutting down server...")

	// Cancel background worker context
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
