// Package config handles loading and validation of service configuration.
// Supports both development (env vars or CONFIG_FILE) and production
// (Secret Manager overrides) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/mod/semver"
)

// Config holds all service configuration.
type Config struct {
	// Server settings
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // "development" or "production"
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// GCP settings (required in production)
	GCPProject string `yaml:"gcp_project" env:"GCP_PROJECT"`
	SecretID   string `yaml:"secret_id" env:"SECRET_ID" env-default:"storefront-proxy"`

	Upstream    UpstreamConfig    `yaml:"upstream"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Consistency ConsistencyConfig `yaml:"consistency"`
	Session     SessionConfig     `yaml:"session"`
}

// UpstreamConfig describes the commerce API.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url" env:"UPSTREAM_BASE_URL" env-default:"https://ecommerce.routemisr.com/api"`
	APIVersion     string        `yaml:"api_version" env:"UPSTREAM_API_VERSION" env-default:"v1"`
	Timeout        time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT" env-default:"12s"`
	TLSFingerprint string        `yaml:"tls_fingerprint" env:"UPSTREAM_TLS_FINGERPRINT"` // "" or "chrome"
}

type CatalogConfig struct {
	TTL time.Duration `yaml:"ttl" env:"CATALOG_TTL" env-default:"60s"`
}

// ConsistencyConfig controls optimistic writes.
type ConsistencyConfig struct {
	RollbackOnFailure bool `yaml:"rollback_on_failure" env:"ROLLBACK_ON_FAILURE" env-default:"false"`
}

type SessionConfig struct {
	Backend  string        `yaml:"backend" env:"SESSION_BACKEND" env-default:"memory"` // "memory" or "redis"
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"720h"`
}

// secretOverrides is the JSON payload stored in Secret Manager.
type secretOverrides struct {
	RedisURL        string `json:"redis_url"`
	UpstreamBaseURL string `json:"upstream_base_url"`
}

// Load reads configuration from CONFIG_FILE (if set) with env vars taking
// precedence, or from env vars alone. In production, secrets are then
// overlaid from Secret Manager. Returns an error if validation fails.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.IsProduction() {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UpstreamURL is the versioned API root, e.g. https://host/api/v1.
func (c *Config) UpstreamURL() string {
	return strings.TrimSuffix(c.Upstream.BaseURL, "/") + "/" + semver.Major(normalizeVersion(c.Upstream.APIVersion))
}

// loadFromSecretManager overlays secrets from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecrets(result.Payload.Data)
}

func (c *Config) applySecrets(data []byte) error {
	var secrets secretOverrides
	if err := json.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if secrets.RedisURL != "" {
		c.Session.RedisURL = secrets.RedisURL
	}
	if secrets.UpstreamBaseURL != "" {
		c.Upstream.BaseURL = secrets.UpstreamBaseURL
	}
	return nil
}

// validate checks that all configuration fields are usable.
func (c *Config) validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid upstream base url %q", c.Upstream.BaseURL)
	}
	if !semver.IsValid(normalizeVersion(c.Upstream.APIVersion)) {
		return fmt.Errorf("invalid upstream api version %q", c.Upstream.APIVersion)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	switch c.Upstream.TLSFingerprint {
	case "", "chrome":
	default:
		return fmt.Errorf("unknown tls fingerprint %q", c.Upstream.TLSFingerprint)
	}
	if c.Catalog.TTL <= 0 {
		return fmt.Errorf("catalog ttl must be positive")
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q (memory or redis)", c.Session.Backend)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	return nil
}

// normalizeVersion adds the "v" prefix semver parsing requires.
func normalizeVersion(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
