// Package main probes a service's gRPC health endpoint and exits non-zero
// when it is not serving. Intended for container health checks.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	healthcheckcmd "github.com/veilworld/veilworld/internal/cmd/healthcheck"
)

func main() {
	cfg, err := healthcheckcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[HEALTHCHECK] ")
	if err := healthcheckcmd.Run(context.Background(), cfg); err != nil {
		log.Fatalf("health probe failed: %v", err)
	}
}
