// Package api parses API command flags and launches the API service runtime.
package api

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/veilworld/veilworld/internal/platform/cmd"
	apiserver "github.com/veilworld/veilworld/internal/services/api"
)

// Config holds API command configuration.
type Config struct {
	HTTPPort       int           `env:"VEILWORLD_API_HTTP_PORT" envDefault:"8080"`
	GRPCPort       int           `env:"VEILWORLD_API_GRPC_PORT" envDefault:"8091"`
	VaultDBPath    string        `env:"VEILWORLD_API_VAULT_DB_PATH" envDefault:"data/vaults.db"`
	QueueDBPath    string        `env:"VEILWORLD_API_QUEUE_DB_PATH" envDefault:"data/actions.db"`
	SessionSecret  string        `env:"VEILWORLD_API_SESSION_SECRET"`
	SessionTTL     time.Duration `env:"VEILWORLD_API_SESSION_TTL" envDefault:"24h"`
	CredentialTTL  time.Duration `env:"VEILWORLD_API_CREDENTIAL_TTL" envDefault:"168h"`
	ThresholdsPath string        `env:"VEILWORLD_API_THRESHOLDS_PATH" envDefault:"config/thresholds.yaml"`
	RPCEndpoints   string        `env:"VEILWORLD_API_RPC_ENDPOINTS"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The API HTTP server port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The API health gRPC server port")
	fs.StringVar(&cfg.VaultDBPath, "vault-db-path", cfg.VaultDBPath, "The vault SQLite database path")
	fs.StringVar(&cfg.QueueDBPath, "queue-db-path", cfg.QueueDBPath, "The action queue SQLite database path")
	fs.StringVar(&cfg.SessionSecret, "session-secret", cfg.SessionSecret, "HMAC secret for vault session tokens")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Vault session token lifetime")
	fs.DurationVar(&cfg.CredentialTTL, "credential-ttl", cfg.CredentialTTL, "Credential verification lifetime")
	fs.StringVar(&cfg.ThresholdsPath, "thresholds-path", cfg.ThresholdsPath, "Path to the token threshold YAML file")
	fs.StringVar(&cfg.RPCEndpoints, "rpc-endpoints", cfg.RPCEndpoints, "Chain RPC endpoints as chainID=url pairs, comma separated")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseRPCEndpoints splits a chainID=url list into a lookup map.
func ParseRPCEndpoints(value string) (map[string]string, error) {
	endpoints := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		chainID, url, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(chainID) == "" || strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("invalid rpc endpoint pair %q, want chainID=url", pair)
		}
		endpoints[strings.TrimSpace(chainID)] = strings.TrimSpace(url)
	}
	return endpoints, nil
}

// Run starts the API service runtime.
func Run(ctx context.Context, cfg Config) error {
	endpoints, err := ParseRPCEndpoints(cfg.RPCEndpoints)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(context.Context) error {
		return apiserver.Run(ctx, apiserver.RuntimeConfig{
			HTTPPort:       cfg.HTTPPort,
			GRPCPort:       cfg.GRPCPort,
			VaultDBPath:    cfg.VaultDBPath,
			QueueDBPath:    cfg.QueueDBPath,
			SessionSecret:  cfg.SessionSecret,
			SessionTTL:     cfg.SessionTTL,
			CredentialTTL:  cfg.CredentialTTL,
			ThresholdsPath: cfg.ThresholdsPath,
			RPCEndpoints:   endpoints,
		})
	})
}
