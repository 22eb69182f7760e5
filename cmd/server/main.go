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

	"task-board-sync/internal/auth"
	"task-board-sync/internal/config"
	"task-board-sync/internal/database"
	"task-board-sync/internal/dedupe"
	"task-board-sync/internal/handlers"
	"task-board-sync/internal/logging"
	"task-board-sync/internal/realtime"
	"task-board-sync/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Run the task board store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to the YAML config file")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.LogLevel)
	if logger.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	auth.Configure(cfg.Auth)

	// Init database
	if err := database.InitDB(cfg.Server.DBPath); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	deduper, closeDedupe, err := newDeduper(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeDedupe()

	h := handlers.New(realtime.GetHub(), deduper, logger)

	// Setup the routes (public and protected routes)
	ginRoutes := routes.SetupRoutes(h, routes.Options{CORSOrigin: cfg.Server.CORSOrigin, Logger: logger})
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           ginRoutes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.OverdueScan > 0 {
		go scanOverdue(ctx, h, cfg.Server.OverdueScan, logger)
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("server starting")
		logger.Debug("API endpoints: POST /api/login, GET|POST /api/tasks, GET|PUT|DELETE /api/tasks/:id, " +
			"GET /api/tasks/project/:projectId/overdue, POST /api/notifications/create, GET /api/notifications, " +
			"DELETE /api/notifications/task/:id/overdue, GET /api/projects/:id/manager_id, GET /api/ws, GET /health")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newDeduper uses Redis when a URL is configured and the database otherwise.
func newDeduper(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) (dedupe.Deduper, func(), error) {
	if cfg.URL == "" {
		return dedupe.NewDBDeduper(database.GetDB(), cfg.DedupeTTL), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.WithField("addr", opts.Addr).Info("overdue dedupe on redis")
	return dedupe.NewRedisDeduper(client, cfg.DedupeTTL), func() { _ = client.Close() }, nil
}

func scanOverdue(ctx context.Context, h *handlers.Handler, every time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := h.ScanOverdue(ctx); err != nil {
				logger.WithError(err).Warn("overdue scan failed")
			}
		}
	}
}
