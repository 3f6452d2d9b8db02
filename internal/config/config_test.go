package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-gateway
upstream:
  spot_rest_url: https://spot.example.test/api/v3
  futures_rest_url: https://fut.example.test/fapi/v1
bus:
  url: nats://bus.example.test:4222
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-gateway" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-gateway")
	}
	if cfg.Upstream.SpotRestURL != "https://spot.example.test/api/v3" {
		t.Errorf("Upstream.SpotRestURL = %q, want %q", cfg.Upstream.SpotRestURL, "https://spot.example.test/api/v3")
	}
	if cfg.Bus.URL != "nats://bus.example.test:4222" {
		t.Errorf("Bus.URL = %q, want %q", cfg.Bus.URL, "nats://bus.example.test:4222")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://secret.example.test:4222")

	yaml := `
instance:
  id: test-gateway
bus:
  url: ${TEST_NATS_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Bus.URL != "nats://secret.example.test:4222" {
		t.Errorf("Bus.URL = %q, want %q", cfg.Bus.URL, "nats://secret.example.test:4222")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv("BINANCE_WS_URL", "") // ambient overrides would mask the default
	yaml := `
instance:
  id: test-gateway
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Upstream.SpotWSURL != DefaultSpotWSURL {
		t.Errorf("Upstream.SpotWSURL = %q, want default %q", cfg.Upstream.SpotWSURL, DefaultSpotWSURL)
	}
	if cfg.Upstream.ReconnectDelay != 5*time.Second {
		t.Errorf("Upstream.ReconnectDelay = %v, want %v", cfg.Upstream.ReconnectDelay, 5*time.Second)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, time.Hour)
	}
	if len(cfg.Hub.DefaultWatchlist) != 3 {
		t.Errorf("Hub.DefaultWatchlist = %v, want 3 anchors", cfg.Hub.DefaultWatchlist)
	}
}

func TestDefaultsHonorEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_URL", "https://mirror.example.test/api/v3")
	t.Setenv("NATS_URL", "nats://bus.example.test:4222")
	t.Setenv("BINANCE_WS_URL", "")

	cfg := Default()

	if got, want := cfg.Upstream.SpotRestURL, "https://mirror.example.test/api/v3"; got != want {
		t.Errorf("Upstream.SpotRestURL = %q, want %q", got, want)
	}
	if got, want := cfg.Bus.URL, "nats://bus.example.test:4222"; got != want {
		t.Errorf("Bus.URL = %q, want %q", got, want)
	}
	// Unset endpoints keep their package defaults.
	if cfg.Upstream.SpotWSURL != DefaultSpotWSURL {
		t.Errorf("Upstream.SpotWSURL = %q, want default %q", cfg.Upstream.SpotWSURL, DefaultSpotWSURL)
	}
}

func TestLoadEmptyEnvFallsBackToDefault(t *testing.T) {
	// ${UNSET} expands to "" and the default must fill it in.
	t.Setenv("BINANCE_API_URL", "")
	yaml := `
instance:
  id: test-gateway
upstream:
  spot_rest_url: ${TEST_UNSET_SPOT_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Upstream.SpotRestURL != DefaultSpotRestURL {
		t.Errorf("Upstream.SpotRestURL = %q, want default %q", cfg.Upstream.SpotRestURL, DefaultSpotRestURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *GatewayConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *GatewayConfig) { c.Instance.ID = "" },
			wantErr: "instance.id",
		},
		{
			name:    "bad ws scheme",
			mutate:  func(c *GatewayConfig) { c.Upstream.SpotWSURL = "https://stream.example.test" },
			wantErr: "ws://",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *GatewayConfig) { c.Cache.TTL = -time.Second },
			wantErr: "cache.ttl",
		},
		{
			name:    "empty watchlist",
			mutate:  func(c *GatewayConfig) { c.Hub.DefaultWatchlist = nil },
			wantErr: "default_watchlist",
		},
		{
			name:    "bad log level",
			mutate:  func(c *GatewayConfig) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultServerAddr)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
