// Package executor parses executor command flags and launches the executor
// runtime.
package executor

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/veilworld/veilworld/internal/platform/cmd"
	executorapp "github.com/veilworld/veilworld/internal/services/executor/app"
)

// Config holds executor command configuration.
type Config struct {
	GRPCPort        int           `env:"VEILWORLD_EXECUTOR_GRPC_PORT" envDefault:"8092"`
	MetricsPort     int           `env:"VEILWORLD_EXECUTOR_METRICS_PORT" envDefault:"8081"`
	DBPath          string        `env:"VEILWORLD_EXECUTOR_DB_PATH" envDefault:"data/actions.db"`
	PlatformBaseURL string        `env:"VEILWORLD_EXECUTOR_PLATFORM_URL"`
	PlatformAPIKey  string        `env:"VEILWORLD_EXECUTOR_PLATFORM_API_KEY"`
	PollInterval    time.Duration `env:"VEILWORLD_EXECUTOR_POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL        time.Duration `env:"VEILWORLD_EXECUTOR_LEASE_TTL" envDefault:"30s"`
	MaxAttempts     int           `env:"VEILWORLD_EXECUTOR_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff    time.Duration `env:"VEILWORLD_EXECUTOR_RETRY_BACKOFF" envDefault:"5s"`
	RetryMaxDelay   time.Duration `env:"VEILWORLD_EXECUTOR_RETRY_MAX_DELAY" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The executor health gRPC server port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "The executor metrics HTTP port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The action queue SQLite database path")
	fs.StringVar(&cfg.PlatformBaseURL, "platform-url", cfg.PlatformBaseURL, "The content platform API base URL")
	fs.StringVar(&cfg.PlatformAPIKey, "platform-api-key", cfg.PlatformAPIKey, "The content platform API key")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Queue poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Request lease duration")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum execution attempts before terminal failure")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the executor runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceExecutor, func(context.Context) error {
		return executorapp.Run(ctx, executorapp.RuntimeConfig{
			GRPCPort:        cfg.GRPCPort,
			MetricsPort:     cfg.MetricsPort,
			DBPath:          cfg.DBPath,
			PlatformBaseURL: cfg.PlatformBaseURL,
			PlatformAPIKey:  cfg.PlatformAPIKey,
			PollInterval:    cfg.PollInterval,
			LeaseTTL:        cfg.LeaseTTL,
			MaxAttempts:     cfg.MaxAttempts,
			RetryBackoff:    cfg.RetryBackoff,
			RetryMaxDelay:   cfg.RetryMaxDelay,
		})
	})
}
