// Package healthcheck parses healthcheck command flags and probes a service.
package healthcheck

import (
	"context"
	"flag"
	"log"
	"time"

	entrypoint "github.com/veilworld/veilworld/internal/platform/cmd"
	"github.com/veilworld/veilworld/internal/platform/discovery"
	platformgrpc "github.com/veilworld/veilworld/internal/platform/grpc"
	"github.com/veilworld/veilworld/internal/platform/timeouts"
)

// Config holds healthcheck command configuration.
type Config struct {
	Addr    string        `env:"VEILWORLD_HEALTHCHECK_ADDR"`
	Service string        `env:"VEILWORLD_HEALTHCHECK_SERVICE" envDefault:"api"`
	Timeout time.Duration `env:"VEILWORLD_HEALTHCHECK_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The gRPC health address to probe; defaults by service")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "The service identity to probe (api or executor)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "How long to wait for SERVING")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Addr = discovery.OrDefaultGRPCAddr(cfg.Addr, cfg.Service)
	return cfg, nil
}

// Run dials the target and waits for its health check to report SERVING.
func Run(ctx context.Context, cfg Config) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.GRPCDial
	}
	conn, err := platformgrpc.DialWithHealth(
		ctx,
		nil,
		cfg.Addr,
		timeout,
		log.Printf,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		return err
	}
	return conn.Close()
}
