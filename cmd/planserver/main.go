// Package main provides the plan server binary: the Planner gRPC service plus a
// Prometheus metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/autohtn/internal/app"
	"github.com/cory-johannsen/autohtn/internal/config"
	"github.com/cory-johannsen/autohtn/internal/crafting"
	"github.com/cory-johannsen/autohtn/internal/observability"
	"github.com/cory-johannsen/autohtn/internal/planservice"
	"github.com/cory-johannsen/autohtn/internal/server"
	"github.com/cory-johannsen/autohtn/internal/storage/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath     string
		withDB         bool
		migrate        bool
		healthInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "planserver",
		Short: "Serve crafting plans over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, withDB, migrate, healthInterval)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/dev.yaml", "path to configuration file")
	cmd.Flags().BoolVar(&withDB, "with-db", false, "serve stored rulebooks from PostgreSQL")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving (requires --with-db)")
	cmd.Flags().DurationVar(&healthInterval, "db-health-interval", 30*time.Second, "database health check interval")
	return cmd
}

func serve(ctx context.Context, configPath string, withDB, migrate bool, healthInterval time.Duration) error {
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting plan server",
		zap.String("grpc_addr", cfg.Server.Addr()),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
	)

	opts, closeScripts, err := app.PlannerOptions(cfg.Planner, nil, logger)
	if err != nil {
		return err
	}
	defer closeScripts()
	registry := crafting.NewRegistry(opts, cfg.Server.DomainCacheSize)
	metrics := observability.NewMetrics()

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lifecycle := server.NewLifecycle(logger)

	var store planservice.RulebookStore
	if withDB {
		if migrate {
			if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			logger.Info("migrations applied")
		}

		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewRulebookRepository(pool.DB())

		lifecycle.Add("db-health", server.NewTicker(healthInterval, func() {
			status := healthpb.HealthCheckResponse_SERVING
			if err := pool.Health(context.Background(), 5*time.Second); err != nil {
				logger.Warn("database health check failed", zap.Error(err))
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			healthServer.SetServingStatus(planservice.ServiceName, status)
		}))
	}

	svc := planservice.NewServer(registry, store, metrics, logger, cfg.Server.RequestTimeout)
	planservice.RegisterPlannerServer(grpcServer, svc)
	healthServer.SetServingStatus(planservice.ServiceName, healthpb.HealthCheckResponse_SERVING)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lifecycle.Add("grpc", server.GRPCService(grpcServer, cfg.Server.Addr(), logger))
	lifecycle.Add("metrics", server.HTTPService(metricsServer, 5*time.Second, logger))

	logger.Info("plan server ready",
		zap.Bool("stored_rulebooks", store != nil),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}
	return nil
}
