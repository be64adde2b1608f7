package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

// Limit is a token-bucket policy: Rate tokens per PeriodMS milliseconds.
type Limit struct {
	Rate     int64 `yaml:"rate"`
	PeriodMS int   `yaml:"period_ms"`
}

func (l Limit) Period() time.Duration {
	return time.Duration(l.PeriodMS) * time.Millisecond
}

type Limits struct {
	Default Limit `yaml:"default"`

	// MaxKeys bounds the number of live per-key buckets in each registry.
	MaxKeys int `yaml:"max_keys"`

	// RefundServerErrors returns the consumed token when the upstream
	// answers with a 5xx, so failed requests do not count against the
	// caller's budget.
	RefundServerErrors bool `yaml:"refund_server_errors"`
}

type APIKey struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

type Route struct {
	ID    string `yaml:"id"`
	Match struct {
		PathPrefix string   `yaml:"path_prefix"`
		Methods    []string `yaml:"methods"`
	} `yaml:"match"`

	Upstream struct {
		URL       string `yaml:"url"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"upstream"`

	// Limit overrides the default policy for this route when both fields
	// are positive.
	Limit Limit `yaml:"limit"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
	Routes        []Route       `yaml:"routes"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 10 << 20 // 10MB
	}
	return s.MaxBodyBytes
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Routes {
		if cfg.Routes[i].Upstream.TimeoutMS <= 0 {
			cfg.Routes[i].Upstream.TimeoutMS = 3000
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Limits.Default.Rate <= 0 {
		cfg.Limits.Default.Rate = 60
	}
	if cfg.Limits.Default.PeriodMS <= 0 {
		cfg.Limits.Default.PeriodMS = 60_000
	}
	if cfg.Limits.MaxKeys <= 0 {
		cfg.Limits.MaxKeys = 4096
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv lets a few common settings be overridden without editing the
// config file. Values that fail to parse are ignored in favor of the file.
func applyEnv(cfg *Root) {
	if v := os.Getenv("RATEGATE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RATEGATE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("RATEGATE_DEFAULT_RATE"); v != "" {
		if n, err := cast.ToInt64E(v); err == nil && n > 0 {
			cfg.Limits.Default.Rate = n
		}
	}
	if v := os.Getenv("RATEGATE_DEFAULT_PERIOD_MS"); v != "" {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			cfg.Limits.Default.PeriodMS = n
		}
	}
	if v := os.Getenv("RATEGATE_MAX_KEYS"); v != "" {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			cfg.Limits.MaxKeys = n
		}
	}
}
