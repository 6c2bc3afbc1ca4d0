// Package api assembles the credential and action HTTP service: vault
// registration, credential verification, and action authorization behind a
// single listener, with a gRPC health server for orchestration probes.
package api

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

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/veilworld/veilworld/internal/platform/evmrpc"
	"github.com/veilworld/veilworld/internal/platform/timeouts"
	actionapi "github.com/veilworld/veilworld/internal/services/actions/api"
	actionapp "github.com/veilworld/veilworld/internal/services/actions/app"
	actiondomain "github.com/veilworld/veilworld/internal/services/actions/domain"
	actionsqlite "github.com/veilworld/veilworld/internal/services/actions/storage/sqlite"
	vaultapi "github.com/veilworld/veilworld/internal/services/vault/api"
	vaultapp "github.com/veilworld/veilworld/internal/services/vault/app"
	vaultdomain "github.com/veilworld/veilworld/internal/services/vault/domain"
	vaultsqlite "github.com/veilworld/veilworld/internal/services/vault/storage/sqlite"
)

// RuntimeConfig controls API service startup. VaultDBPath and QueueDBPath
// are separate files: the queue database is shared with the executor
// process, the vault database is not.
type RuntimeConfig struct {
	HTTPPort       int
	GRPCPort       int
	VaultDBPath    string
	QueueDBPath    string
	SessionSecret  string
	SessionTTL     time.Duration
	CredentialTTL  time.Duration
	ThresholdsPath string
	RPCEndpoints   map[string]string
}

const (
	defaultAPIHTTPPort = 8080
	defaultAPIGRPCPort = 8091
	defaultVaultDB     = "data/vaults.db"
	defaultQueueDB     = "data/actions.db"
	defaultSessionTTL  = 24 * time.Hour
)

// Run starts the API service and blocks until the context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return fmt.Errorf("session secret is required")
	}
	if strings.TrimSpace(cfg.ThresholdsPath) == "" {
		return fmt.Errorf("thresholds path is required")
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultAPIHTTPPort
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = defaultAPIGRPCPort
	}
	if strings.TrimSpace(cfg.VaultDBPath) == "" {
		cfg.VaultDBPath = defaultVaultDB
	}
	if strings.TrimSpace(cfg.QueueDBPath) == "" {
		cfg.QueueDBPath = defaultQueueDB
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = vaultdomain.DefaultTTL
	}

	policy, err := actiondomain.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}

	for _, path := range []string{cfg.VaultDBPath, cfg.QueueDBPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
	}
	vaultStore, err := vaultsqlite.Open(cfg.VaultDBPath)
	if err != nil {
		return fmt.Errorf("open vault store: %w", err)
	}
	defer func() {
		if closeErr := vaultStore.Close(); closeErr != nil {
			log.Printf("close vault store: %v", closeErr)
		}
	}()
	queueStore, err := actionsqlite.Open(cfg.QueueDBPath)
	if err != nil {
		return fmt.Errorf("open action queue store: %w", err)
	}
	defer func() {
		if closeErr := queueStore.Close(); closeErr != nil {
			log.Printf("close action queue store: %v", closeErr)
		}
	}()

	sessions, err := vaultapp.NewSessions([]byte(cfg.SessionSecret), cfg.SessionTTL, nil)
	if err != nil {
		return fmt.Errorf("build sessions: %w", err)
	}
	balances := evmrpc.New(cfg.RPCEndpoints)
	verifier := vaultapp.NewVerifier(vaultStore, vaultStore, balances, nil)
	engine := actionapp.NewEngine(vaultStore, vaultStore, queueStore, policy, cfg.CredentialTTL, nil)

	mux := http.NewServeMux()
	vaultapi.NewServer(vaultStore, vaultStore, verifier, sessions, cfg.CredentialTTL, nil).RegisterRoutes(mux)
	actionapi.NewServer(engine, queueStore).RegisterRoutes(mux)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on api grpc port %d: %w", cfg.GRPCPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("api.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()

	log.Printf("api server listening at %s", httpServer.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown http server: %v", err)
		}
		<-httpErr
		return nil
	case err := <-httpErr:
		return fmt.Errorf("serve http: %w", err)
	}
}
