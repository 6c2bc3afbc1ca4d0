package api

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	t.Setenv("VEILWORLD_API_HTTP_PORT", "9080")
	t.Setenv("VEILWORLD_API_SESSION_SECRET", "env-secret")

	cfg, err := ParseConfig(fs, []string{"-credential-ttl", "48h", "-thresholds-path", "custom.yaml"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 9080 {
		t.Fatalf("http port = %d, want 9080", cfg.HTTPPort)
	}
	if cfg.GRPCPort != 8091 {
		t.Fatalf("grpc port = %d, want 8091", cfg.GRPCPort)
	}
	if cfg.SessionSecret != "env-secret" {
		t.Fatalf("session secret = %q", cfg.SessionSecret)
	}
	if cfg.CredentialTTL != 48*time.Hour {
		t.Fatalf("credential ttl = %v, want 48h", cfg.CredentialTTL)
	}
	if cfg.ThresholdsPath != "custom.yaml" {
		t.Fatalf("thresholds path = %q", cfg.ThresholdsPath)
	}
}

func TestParseConfig_DefaultCredentialTTL(t *testing.T) {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.CredentialTTL != 7*24*time.Hour {
		t.Fatalf("credential ttl = %v, want 168h", cfg.CredentialTTL)
	}
	if cfg.QueueDBPath != "data/actions.db" {
		t.Fatalf("queue db path = %q", cfg.QueueDBPath)
	}
}

func TestParseRPCEndpoints(t *testing.T) {
	endpoints, err := ParseRPCEndpoints("8453=https://mainnet.base.org, 1=https://eth.example.com")
	if err != nil {
		t.Fatalf("parse rpc endpoints: %v", err)
	}
	if endpoints["8453"] != "https://mainnet.base.org" {
		t.Fatalf("base endpoint = %q", endpoints["8453"])
	}
	if endpoints["1"] != "https://eth.example.com" {
		t.Fatalf("mainnet endpoint = %q", endpoints["1"])
	}

	if _, err := ParseRPCEndpoints("justanurl"); err == nil {
		t.Fatal("expected error for pair without chain id")
	}
	empty, err := ParseRPCEndpoints("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty value: %v, %v", empty, err)
	}
}
