package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  addr: ":9090"
  max_body_bytes: 1024
observability:
  log_level: debug
limits:
  default:
    rate: 25
    period_ms: 50
  max_keys: 100
  refund_server_errors: true
auth:
  header: X-Token
  keys:
    - id: team-a
      secret: s3cret
routes:
  - id: orders
    match:
      path_prefix: /orders
      methods: [GET, POST]
    upstream:
      url: http://localhost:9001
    limit:
      rate: 5
      period_ms: 1000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Limits.Default.Rate != 25 || cfg.Limits.Default.Period() != 50*time.Millisecond {
		t.Errorf("default limit = %d per %v, want 25 per 50ms",
			cfg.Limits.Default.Rate, cfg.Limits.Default.Period())
	}
	if !cfg.Limits.RefundServerErrors {
		t.Error("RefundServerErrors = false, want true")
	}
	if cfg.Limits.MaxKeys != 100 {
		t.Errorf("MaxKeys = %d, want 100", cfg.Limits.MaxKeys)
	}
	if len(cfg.Routes) != 1 || cfg.Routes[0].Limit.Rate != 5 {
		t.Fatalf("routes = %+v, want one route with rate override 5", cfg.Routes)
	}
	if cfg.Routes[0].Upstream.TimeoutMS != 3000 {
		t.Errorf("route timeout = %d, want default 3000", cfg.Routes[0].Upstream.TimeoutMS)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server: {}\n"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.PrometheusPath != "/metrics" {
		t.Errorf("observability defaults = %+v", cfg.Observability)
	}
	if cfg.Auth.Header != "X-API-Key" {
		t.Errorf("auth header = %q, want X-API-Key", cfg.Auth.Header)
	}
	if cfg.Limits.Default.Rate != 60 || cfg.Limits.Default.PeriodMS != 60_000 {
		t.Errorf("default limit = %+v, want 60 per minute", cfg.Limits.Default)
	}
	if cfg.Limits.MaxKeys != 4096 {
		t.Errorf("MaxKeys = %d, want 4096", cfg.Limits.MaxKeys)
	}
	if cfg.Server.ReadTimeout() != 5*time.Second || cfg.Server.MaxBody() != 10<<20 {
		t.Errorf("server defaults: read=%v body=%d", cfg.Server.ReadTimeout(), cfg.Server.MaxBody())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RATEGATE_ADDR", ":7070")
	t.Setenv("RATEGATE_DEFAULT_RATE", "500")
	t.Setenv("RATEGATE_DEFAULT_PERIOD_MS", "not-a-number")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, want env override :7070", cfg.Server.Addr)
	}
	if cfg.Limits.Default.Rate != 500 {
		t.Errorf("rate = %d, want env override 500", cfg.Limits.Default.Rate)
	}
	// Unparseable override keeps the file value.
	if cfg.Limits.Default.PeriodMS != 50 {
		t.Errorf("period_ms = %d, want file value 50", cfg.Limits.Default.PeriodMS)
	}
}

func TestLoadBadFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) returned nil error")
	}
	if _, err := Load(writeConfig(t, "routes: {not: [valid")); err == nil {
		t.Error("Load(bad yaml) returned nil error")
	}
}
