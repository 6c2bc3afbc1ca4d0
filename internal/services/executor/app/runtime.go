package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/veilworld/veilworld/internal/platform/timeouts"
	actionsqlite "github.com/veilworld/veilworld/internal/services/actions/storage/sqlite"
	"github.com/veilworld/veilworld/internal/services/executor/domain"
	"github.com/veilworld/veilworld/internal/services/executor/platformapi"
)

// RuntimeConfig controls executor startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	GRPCPort        int
	MetricsPort     int
	DBPath          string
	PlatformBaseURL string
	PlatformAPIKey  string
	PollInterval    time.Duration
	LeaseTTL        time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	RetryMaxDelay   time.Duration
}

const (
	defaultExecutorGRPCPort    = 8092
	defaultExecutorMetricsPort = 8081
	defaultExecutorDB          = "data/actions.db"
)

// Run starts executor runtime dependencies and the background processing loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.PlatformBaseURL) == "" {
		return fmt.Errorf("platform base url is required")
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = defaultExecutorGRPCPort
	}
	if cfg.MetricsPort <= 0 {
		cfg.MetricsPort = defaultExecutorMetricsPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultExecutorDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create executor storage dir: %w", err)
		}
	}

	queue, err := actionsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open action queue store: %w", err)
	}
	defer func() {
		if closeErr := queue.Close(); closeErr != nil {
			log.Printf("close action queue store: %v", closeErr)
		}
	}()

	platform, err := platformapi.NewClient(cfg.PlatformBaseURL, cfg.PlatformAPIKey, nil)
	if err != nil {
		return fmt.Errorf("build platform client: %w", err)
	}

	registry := prometheus.NewRegistry()
	loop := New(queue, domain.Handlers(platform, platform), Config{
		PollInterval:  cfg.PollInterval,
		LeaseTTL:      cfg.LeaseTTL,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
	}, NewMetrics(registry), nil)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on executor port %d: %w", cfg.GRPCPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("executor.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown metrics server: %v", err)
		}
	}()

	log.Printf("executor server listening at %v", listener.Addr())
	return loop.Run(ctx)
}
